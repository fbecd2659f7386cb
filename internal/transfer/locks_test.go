package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPairLocksOppositeOrdersDoNotDeadlock(t *testing.T) {
	locks := newPairLocks()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release, err := locks.acquirePair(ctx, "wallet-a", "wallet-b", time.Second)
			if err != nil {
				t.Errorf("acquire a,b: %v", err)
				return
			}
			release()
		}()
		go func() {
			defer wg.Done()
			release, err := locks.acquirePair(ctx, "wallet-b", "wallet-a", time.Second)
			if err != nil {
				t.Errorf("acquire b,a: %v", err)
				return
			}
			release()
		}()
	}
	wg.Wait()
}

func TestPairLocksTimeout(t *testing.T) {
	locks := newPairLocks()
	ctx := context.Background()

	release, err := locks.acquirePair(ctx, "wallet-a", "wallet-b", time.Second)
	if err != nil {
		t.Fatalf("initial acquire: %v", err)
	}
	defer release()

	if _, err := locks.acquirePair(ctx, "wallet-a", "wallet-c", 20*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}

	// The failed waiter must not leave an entry behind for wallet-c.
	if n := locks.tableSize(); n != 2 {
		t.Fatalf("expected 2 held entries after timeout, got %d", n)
	}
}

func TestPairLocksEvictReleasedEntries(t *testing.T) {
	locks := newPairLocks()
	ctx := context.Background()

	release, err := locks.acquirePair(ctx, "wallet-a", "wallet-b", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if n := locks.tableSize(); n != 2 {
		t.Fatalf("expected 2 entries while held, got %d", n)
	}
	release()

	if n := locks.tableSize(); n != 0 {
		t.Fatalf("expected empty lock table after release, got %d entries", n)
	}
}

func TestPairLocksReleaseOnPartialFailure(t *testing.T) {
	locks := newPairLocks()
	ctx := context.Background()

	release, err := locks.acquirePair(ctx, "wallet-b", "wallet-b2", time.Second)
	if err != nil {
		t.Fatalf("initial acquire: %v", err)
	}

	// Second acquisition fails on wallet-b; wallet-a must be released again.
	if _, err := locks.acquirePair(ctx, "wallet-a", "wallet-b", 20*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}

	if err := locks.acquire(ctx, "wallet-a", 20*time.Millisecond); err != nil {
		t.Fatalf("wallet-a still held after failed pair acquisition: %v", err)
	}
	locks.release("wallet-a")
	release()
}
