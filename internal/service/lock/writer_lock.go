package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"SpinPull/internal/domain/models"
	domrepo "SpinPull/internal/domain/repository"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/store"
)

const retryEvery = 25 * time.Millisecond

// Config controls the writer lock.
type Config struct {
	// Distributed adds a store lease on top of the in-process mutex.
	Distributed bool
	// TTL bounds how long a crashed holder keeps the lease. A live holder
	// renews it every TTL/3.
	TTL time.Duration
	// Wait bounds how long Acquire blocks before giving up.
	Wait time.Duration
}

// WriterLock serialises writers per session. Within one process a channel
// semaphore per session is used; across processes a SET NX PX lease.
type WriterLock struct {
	cfg   Config
	store store.Store
	l     *applogger.Logger

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewWriterLock(cfg Config, s store.Store) *WriterLock {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	if s == nil {
		cfg.Distributed = false
	}
	return &WriterLock{cfg: cfg, store: s, slots: make(map[string]chan struct{})}
}

// SetLogger injects a structured logger.
func (w *WriterLock) SetLogger(l *applogger.Logger) { w.l = l }

func (w *WriterLock) slot(session string) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.slots[session]
	if !ok {
		ch = make(chan struct{}, 1)
		w.slots[session] = ch
	}
	return ch
}

// Acquire blocks until the caller is the only writer for session, or until
// the wait bound or ctx expires. The returned release func must be called once.
func (w *WriterLock) Acquire(ctx context.Context, session string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Wait)
	defer cancel()

	ch := w.slot(session)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("writer lock %s: %w", session, models.ErrDeadlineExceeded)
	}
	local := func() { <-ch }

	if !w.cfg.Distributed {
		return local, nil
	}

	owner := uuid.NewString()
	key := domrepo.LockKey(session)
	for {
		ok, err := w.store.TryLock(ctx, key, owner, w.cfg.TTL)
		if err != nil {
			local()
			return nil, fmt.Errorf("writer lease %s: %w: %w", session, models.ErrStoreUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(retryEvery):
		case <-ctx.Done():
			local()
			return nil, fmt.Errorf("writer lease %s: %w", session, models.ErrDeadlineExceeded)
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go w.renew(session, key, owner, stop, done)

	return func() {
		close(stop)
		<-done
		rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
		defer rcancel()
		if released, err := w.store.Unlock(rctx, key, owner); err != nil || !released {
			if w.l != nil {
				w.l.Warn("writer lease release failed",
					applogger.String("session", session),
					applogger.Bool("released", released),
					applogger.Error(err))
			}
		}
		local()
	}, nil
}

// renew extends the lease every TTL/3 until stop is closed or the lease is
// found lost.
func (w *WriterLock) renew(session, key, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(w.cfg.TTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.cfg.TTL/3+time.Millisecond)
			ok, err := w.store.Extend(ctx, key, owner, w.cfg.TTL)
			cancel()
			if err != nil {
				if w.l != nil {
					w.l.Warn("writer lease renewal failed", applogger.String("session", session), applogger.Error(err))
				}
				continue
			}
			if !ok {
				if w.l != nil {
					w.l.Error("writer lease lost", applogger.String("session", session))
				}
				return
			}
		}
	}
}
