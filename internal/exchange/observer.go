package exchange

// Observer receives handoff events. Implementations must not block:
// Slot calls them while holding its lock.
type Observer[T any] interface {
	Produced(item T)
	Consumed(item T)
}

// Logger is the logging interface used by LogObserver.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopObserver[T any] struct{}

func (nopObserver[T]) Produced(T) {}
func (nopObserver[T]) Consumed(T) {}

// multiObserver fans events out to several observers in registration order.
type multiObserver[T any] []Observer[T]

// Multi combines observers. Nil and no-op entries are dropped.
func Multi[T any](observers ...Observer[T]) Observer[T] {
	var valid multiObserver[T]
	for _, o := range observers {
		switch v := o.(type) {
		case nil, nopObserver[T]:
		case multiObserver[T]:
			valid = append(valid, v...)
		default:
			valid = append(valid, o)
		}
	}
	switch len(valid) {
	case 0:
		return nopObserver[T]{}
	case 1:
		return valid[0]
	}
	return valid
}

func (m multiObserver[T]) Produced(item T) {
	for _, o := range m {
		o.Produced(item)
	}
}

func (m multiObserver[T]) Consumed(item T) {
	for _, o := range m {
		o.Consumed(item)
	}
}

// LogObserver writes one line per handoff step.
type LogObserver[T any] struct {
	logger Logger
	kind   Kind
}

// NewLogObserver creates an observer that logs at info level.
func NewLogObserver[T any](logger Logger, kind Kind) *LogObserver[T] {
	return &LogObserver[T]{logger: logger, kind: kind}
}

// Produced logs the value placed in the slot.
func (l *LogObserver[T]) Produced(item T) {
	l.logger.Info("produced", "value", item, "exchange", string(l.kind))
}

// Consumed logs the value taken from the slot.
func (l *LogObserver[T]) Consumed(item T) {
	l.logger.Info("consumed", "value", item, "exchange", string(l.kind))
}
