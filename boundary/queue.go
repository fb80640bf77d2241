package boundary

import (
	"sync"
	"time"

	"github.com/pearlryder/CellProfiler/comm"
)

// Queue is the unbounded FIFO a consumer registers for its channel.
// Push never blocks, so the router's I/O goroutine cannot stall on a
// slow consumer; Pop blocks with an optional timeout.
type Queue struct {
	mu     sync.Mutex
	items  []*comm.Envelope
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) Push(env *comm.Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest envelope, waiting up to timeout for one to
// arrive. A non-positive timeout waits indefinitely. An elapsed wait
// returns ErrPopTimeout.
func (q *Queue) Pop(timeout time.Duration) (*comm.Envelope, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			env := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Wake any other waiter; the cap-1 notify may have
				// coalesced several pushes.
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return env, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-deadline:
			return nil, ErrPopTimeout
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
