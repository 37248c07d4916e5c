package dispatch

import (
	"sync"
	"testing"
)

func TestDispatchWithoutRegistration(t *testing.T) {
	prev := RegisterDispatch(nil)
	defer RegisterDispatch(prev)

	if Dispatch(func() {}) {
		t.Error("Dispatch with no registered function = true, want false")
	}
}

func TestDispatchNilCallback(t *testing.T) {
	q := NewQueue()
	prev := RegisterDispatch(q.Post)
	defer RegisterDispatch(prev)

	if Dispatch(nil) {
		t.Error("Dispatch(nil) = true, want false")
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestQueueDrainOrder(t *testing.T) {
	q := NewQueue()
	prev := RegisterDispatch(q.Post)
	defer RegisterDispatch(prev)

	var got []int
	Dispatch(func() { got = append(got, 1) })
	Dispatch(func() {
		got = append(got, 2)
		Dispatch(func() { got = append(got, 4) })
	})
	Dispatch(func() { got = append(got, 3) })

	if n := q.Drain(); n != 4 {
		t.Errorf("Drain() = %d, want 4", n)
	}
	want := []int{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestQueueConcurrentPost(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Post(func() {})
		}()
	}
	wg.Wait()

	select {
	case <-q.Ready():
	default:
		t.Error("Ready() not signalled after Post")
	}
	if n := q.Drain(); n != 50 {
		t.Errorf("Drain() = %d, want 50", n)
	}
}

func TestPostWithoutRegistrationQueuesOnMain(t *testing.T) {
	prev := RegisterDispatch(nil)
	defer RegisterDispatch(prev)
	Main().Drain()

	ran := false
	Post(func() { ran = true })
	Post(nil)
	if ran {
		t.Fatal("Post ran the callback on the calling goroutine")
	}
	if n := Main().Len(); n != 1 {
		t.Fatalf("Main().Len() = %d, want 1", n)
	}
	Main().Drain()
	if !ran {
		t.Error("callback did not run on Drain")
	}
}

func TestPostUsesRegisteredDispatch(t *testing.T) {
	q := NewQueue()
	prev := RegisterDispatch(q.Post)
	defer RegisterDispatch(prev)

	Post(func() {})
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
	if Main().Len() != 0 {
		t.Errorf("Main().Len() = %d, want 0", Main().Len())
	}
}
