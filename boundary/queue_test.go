package boundary

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pearlryder/CellProfiler/comm"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		q.Push(comm.NewRequest(map[string]any{"n": i}))
	}
	for i := 0; i < 3; i++ {
		env, err := q.Pop(time.Second)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		n, _ := env.Payload.(map[string]any)["n"].(int)
		if n != i {
			t.Fatalf("pop %d: got %d", i, n)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d", q.Len())
	}
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue()
	start := time.Now()
	_, err := q.Pop(50 * time.Millisecond)
	if !errors.Is(err, ErrPopTimeout) {
		t.Fatalf("expected ErrPopTimeout, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("pop returned before the timeout")
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := NewQueue()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(comm.NewRequest(map[string]any{"msg": "late"}))
	}()
	env, err := q.Pop(5 * time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if env.Payload.(map[string]any)["msg"] != "late" {
		t.Fatalf("payload: %v", env.Payload)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(comm.NewRequest(map[string]any{}))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < producers*perProducer; i++ {
		if _, err := q.Pop(time.Second); err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
	}
	if _, err := q.Pop(10 * time.Millisecond); !errors.Is(err, ErrPopTimeout) {
		t.Fatalf("queue should be empty, got %v", err)
	}
}
