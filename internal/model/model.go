package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&HandoffEvent{},
}

// Session is one run of the producer/consumer pair
type Session struct {
	gorm.Model
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt"`
	Exchange  string         `json:"exchange" gorm:"size:32"`
	Settings  datatypes.JSON `json:"settings" gorm:"default:'{}'"` // loop settings the session ran with
}

func (*Session) TableName() string {
	return "sessions"
}

// HandoffEvent is a single produced or consumed step
type HandoffEvent struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_handoffevent_session_id"`
	Session   Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq       uint64         `json:"seq" gorm:"index:idx_handoffevent_seq"`
	Time      time.Time      `json:"time"`
	Kind      string         `json:"kind" gorm:"size:16"`
	Value     int            `json:"value"`
	Exchange  string         `json:"exchange" gorm:"size:32"`
	Meta      datatypes.JSON `json:"meta" gorm:"default:'{}'"` // free-form annotations, e.g. hostname
}

func (*HandoffEvent) TableName() string {
	return "handoff_events"
}
