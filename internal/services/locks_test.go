package services

import (
	"sync"
	"testing"
	"time"
)

func TestUserLocks(t *testing.T) {
	t.Run("same_user_serializes", func(t *testing.T) {
		l := newUserLocks()
		var mu sync.Mutex
		active, peak := 0, 0

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := l.lock("u1")
				defer release()

				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
			}()
		}
		wg.Wait()

		if peak != 1 {
			t.Errorf("expected at most one holder, saw %d", peak)
		}
		if l.size() != 0 {
			t.Errorf("expected entries to be released, got %d", l.size())
		}
	})

	t.Run("different_users_independent", func(t *testing.T) {
		l := newUserLocks()
		release := l.lock("u1")
		defer release()

		done := make(chan struct{})
		go func() {
			l.lock("u2")()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock for u2 blocked on u1")
		}
		if l.size() != 1 {
			t.Errorf("expected only u1 to remain, got %d", l.size())
		}
	})
}
