package exchange

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.add("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.add("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.add("ERROR", msg, keysAndValues) }

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func TestObserver_SeesHandoffOrder(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			rec := &recordingObserver{}
			ex, err := New(kind, WithObserver[int](rec))
			require.NoError(t, err)

			const n = 500
			ctx := context.Background()
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 1; i <= n; i++ {
					assert.NoError(t, ex.Put(ctx, i))
				}
			}()
			go func() {
				defer wg.Done()
				for i := 1; i <= n; i++ {
					_, err := ex.Take(ctx)
					assert.NoError(t, err)
				}
			}()
			wg.Wait()

			events := rec.all()
			require.Len(t, events, 2*n)
			for i := 1; i <= n; i++ {
				assert.Equal(t, fmt.Sprintf("produced:%d", i), events[2*(i-1)])
				assert.Equal(t, fmt.Sprintf("consumed:%d", i), events[2*(i-1)+1])
			}
		})
	}
}

func TestObserver_NotCalledOnFailedHandoff(t *testing.T) {
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			rec := &recordingObserver{}
			ex, err := New(kind, WithObserver[int](rec))
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err = ex.Take(ctx)
			require.Error(t, err)

			require.NoError(t, ex.Put(context.Background(), 1))
			require.Error(t, ex.Put(ctx, 2))

			assert.Equal(t, []string{"produced:1"}, rec.all())
		})
	}
}

func TestMulti(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}

	_, isNop := Multi[int]().(nopObserver[int])
	assert.True(t, isNop, "no observers should yield a no-op")

	assert.Same(t, a, Multi[int](nil, a, nopObserver[int]{}), "single observer is returned as is")

	m := Multi[int](a, nil, Multi[int](b))
	m.Produced(1)
	m.Consumed(1)

	assert.Equal(t, []string{"produced:1", "consumed:1"}, a.all())
	assert.Equal(t, []string{"produced:1", "consumed:1"}, b.all())
}

func TestWithObserver_Accumulates(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	s := NewSlot(WithObserver[int](a), WithObserver[int](b))

	require.NoError(t, s.Put(context.Background(), 5))

	assert.Equal(t, []string{"produced:5"}, a.all())
	assert.Equal(t, []string{"produced:5"}, b.all())
}

func TestLogObserver(t *testing.T) {
	logger := &testLogger{}
	s := NewSlot(WithObserver[int](NewLogObserver[int](logger, KindMonitor)))

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, 3))
	_, err := s.Take(ctx)
	require.NoError(t, err)

	require.Len(t, logger.messages, 2)
	assert.Equal(t, "INFO: produced [value 3 exchange monitor]", logger.messages[0])
	assert.Equal(t, "INFO: consumed [value 3 exchange monitor]", logger.messages[1])
}
