package transfer

import (
	"context"
	"sync"
	"time"
)

// pairLocks serializes transfers touching the same wallets. Locks are always
// taken in ascending wallet-ID order so two transfers over the same pair in
// opposite directions cannot deadlock. Entries are reference-counted and
// evicted once the last holder or waiter checks in, keeping the table
// proportional to in-flight transfers rather than to every wallet ever seen.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*walletLock
}

type walletLock struct {
	ch   chan struct{}
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*walletLock)}
}

// checkout returns the wallet's lock channel, pinning the entry until the
// matching checkin.
func (p *pairLocks) checkout(id string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[id]
	if !ok {
		l = &walletLock{ch: make(chan struct{}, 1)}
		p.locks[id] = l
	}
	l.refs++
	return l.ch
}

func (p *pairLocks) checkin(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(p.locks, id)
	}
}

func (p *pairLocks) acquire(ctx context.Context, id string, wait time.Duration) error {
	ch := p.checkout(id)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		p.checkin(id)
		return ErrLockTimeout
	case <-ctx.Done():
		p.checkin(id)
		return ctx.Err()
	}
}

func (p *pairLocks) release(id string) {
	// The holder's checkout keeps the entry alive until the checkin below.
	p.mu.Lock()
	ch := p.locks[id].ch
	p.mu.Unlock()

	<-ch
	p.checkin(id)
}

func (p *pairLocks) tableSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

// acquirePair locks both wallets and returns a release function. The returned
// function is nil when acquisition fails.
func (p *pairLocks) acquirePair(ctx context.Context, a, b string, wait time.Duration) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	if err := p.acquire(ctx, first, wait); err != nil {
		return nil, err
	}
	if err := p.acquire(ctx, second, wait); err != nil {
		p.release(first)
		return nil, err
	}

	return func() {
		p.release(second)
		p.release(first)
	}, nil
}
