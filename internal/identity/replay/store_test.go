package replay

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStore_ConsumeOnce(t *testing.T) {
	s := NewStore()
	s.Put("nonce-1", time.Now().UTC().Add(time.Minute))

	if !s.Consume("nonce-1") {
		t.Fatal("first consume should succeed")
	}
	if s.Consume("nonce-1") {
		t.Fatal("second consume must fail")
	}
}

func TestStore_UnknownNonce(t *testing.T) {
	s := NewStore()
	if s.Consume("never-registered") {
		t.Fatal("unknown nonce must not be consumable")
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()
	s.nowF = func() time.Time { return now }
	s.Put("nonce-1", now.Add(10*time.Minute))

	now = now.Add(11 * time.Minute)
	if s.Consume("nonce-1") {
		t.Fatal("expired nonce must not be consumable")
	}
}

func TestStore_PutPrunesExpired(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()
	s.nowF = func() time.Time { return now }
	for i := 0; i < 10; i++ {
		s.Put(fmt.Sprintf("old-%d", i), now.Add(time.Minute))
	}
	now = now.Add(2 * time.Minute)
	s.Put("fresh", now.Add(time.Minute))

	s.mu.Lock()
	size := len(s.m)
	s.mu.Unlock()
	if size != 1 {
		t.Errorf("store holds %d entries after prune, want 1", size)
	}
}

func TestStore_ConcurrentConsume(t *testing.T) {
	s := NewStore()
	s.Put("nonce-1", time.Now().UTC().Add(time.Minute))

	const racers = 8
	wins := make(chan bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.Consume("nonce-1")
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for won := range wins {
		if won {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("%d consumers won, want exactly 1", n)
	}
}
