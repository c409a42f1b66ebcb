package patledger

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryLedger_Dedup(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	first, err := l.TryRegister(ctx, "worryaaaaa", "origin-a")
	if err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}
	if !first {
		t.Fatal("first registration should succeed")
	}

	second, err := l.TryRegister(ctx, "worryaaaaa", "origin-a")
	if err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}
	if second {
		t.Fatal("repeat registration for the same pair must fail")
	}

	// Different origin on the same worry is independent.
	other, err := l.TryRegister(ctx, "worryaaaaa", "origin-b")
	if err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}
	if !other {
		t.Fatal("different origin should register")
	}

	// Same origin on a different worry is independent.
	otherWorry, err := l.TryRegister(ctx, "worrybbbbb", "origin-a")
	if err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}
	if !otherWorry {
		t.Fatal("same origin on a different worry should register")
	}
}

func TestMemoryLedger_ConcurrentRegister(t *testing.T) {
	l := NewMemoryLedger()

	const attempts = 64
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.TryRegister(context.Background(), "worryccccc", "origin-x")
			if err != nil {
				t.Errorf("TryRegister returned error: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("%d concurrent registrations succeeded, want exactly 1", wins)
	}
}

func TestMemoryLedger_Forget(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if _, err := l.TryRegister(ctx, "worryddddd", "origin-a"); err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}

	l.Forget("worryddddd")

	again, err := l.TryRegister(ctx, "worryddddd", "origin-a")
	if err != nil {
		t.Fatalf("TryRegister returned error: %v", err)
	}
	if !again {
		t.Fatal("registration should succeed after Forget")
	}

	// Forget on an unknown id is a no-op.
	l.Forget("neverseen1")
}
