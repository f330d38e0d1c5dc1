// Package reconcile watches payment intents until the gateway settles
// them. Webhook delivery can lag arbitrarily, so each created intent gets a
// bounded polling loop that reconciles the ledger the moment the intent
// turns PAID.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
	"github.com/vibast-solutions/ms-go-client-billing/app/factory"
)

type StatusSource interface {
	GetStatus(ctx context.Context, id uint64) (entity.IntentStatus, error)
}

type Reconciler interface {
	ReconcilePaidIntent(ctx context.Context, intentID uint64) error
}

// Watcher runs at most one polling loop per intent. Every loop is owned:
// Cancel stops a single watch, Shutdown stops them all and waits. A result
// read for an intent that was cancelled mid-poll is discarded, so a stale
// poll can never refresh the ledger after the intent was superseded.
type Watcher struct {
	source      StatusSource
	reconciler  Reconciler
	interval    time.Duration
	maxPolls    int
	pollTimeout time.Duration
	logger      logrus.FieldLogger

	mu       sync.Mutex
	active   map[uint64]context.CancelFunc
	wg       sync.WaitGroup
	baseCtx  context.Context
	shutdown context.CancelFunc
}

func NewWatcher(source StatusSource, reconciler Reconciler, interval time.Duration, maxPolls int) *Watcher {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		source:      source,
		reconciler:  reconciler,
		interval:    interval,
		maxPolls:    maxPolls,
		pollTimeout: interval,
		logger:      factory.NewModuleLogger("reconcile-watcher"),
		active:      make(map[uint64]context.CancelFunc),
		baseCtx:     baseCtx,
		shutdown:    cancel,
	}
}

// Watch starts polling the intent. Returns false when a watch for it is
// already running; repeated selections for the same intent never stack
// duplicate pollers.
func (w *Watcher) Watch(intentID uint64) bool {
	w.mu.Lock()
	if _, ok := w.active[intentID]; ok {
		w.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(w.baseCtx)
	w.active[intentID] = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(ctx, intentID)
	return true
}

// Cancel stops the watch for one intent, if any. Used when the intent is
// superseded: its loop must not poll a now-dead intent.
func (w *Watcher) Cancel(intentID uint64) {
	w.mu.Lock()
	cancel, ok := w.active[intentID]
	if ok {
		delete(w.active, intentID)
	}
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

// Watching reports whether a loop for the intent is still running.
func (w *Watcher) Watching(intentID uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[intentID]
	return ok
}

// Shutdown cancels every watch and waits for the loops to drain.
func (w *Watcher) Shutdown() {
	w.shutdown()
	w.wg.Wait()
}

func (w *Watcher) remove(intentID uint64) {
	w.mu.Lock()
	if cancel, ok := w.active[intentID]; ok {
		delete(w.active, intentID)
		defer cancel()
	}
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context, intentID uint64) {
	defer w.wg.Done()
	defer w.remove(intentID)

	l := w.logger.WithField("intent_id", intentID)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			l.Debug("Watch cancelled")
			return
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, w.pollTimeout)
			status, err := w.source.GetStatus(pollCtx, intentID)
			cancel()

			if ctx.Err() != nil {
				// Cancelled while the poll was in flight; the result no
				// longer belongs to a tracked intent.
				return
			}
			if err != nil {
				// Transient transport failure: keep the interval, and do
				// not count it toward the confirmation cap.
				l.WithError(err).Debug("Poll failed, retrying")
				continue
			}

			switch {
			case status == entity.IntentStatusPaid:
				if err := w.reconciler.ReconcilePaidIntent(ctx, intentID); err != nil {
					l.WithError(err).Error("Ledger reconciliation failed after payment")
				} else {
					l.Info("Payment confirmed, ledger reconciled")
				}
				return
			case status.Terminal():
				l.WithField("status", string(status)).Info("Intent reached terminal status")
				return
			default:
				polls++
				if polls >= w.maxPolls {
					l.WithField("polls", polls).Warn("Confirmation timeout, giving up watch")
					return
				}
			}
		}
	}
}
