package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
)

// Kind names a background job. Each kind keeps its own last result, but all
// kinds share one run slot.
type Kind string

const (
	KindDailyBids  Kind = "daily-bids"
	KindReevaluate Kind = "reevaluate"
)

// Result is the terminal outcome of a finished run.
type Result struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is the externally visible state of one job kind.
type Status struct {
	Running    bool    `json:"running"`
	LastResult *Result `json:"last_result,omitempty"`
}

// Fn is the body of a job. Its returned message becomes the result message;
// a non-nil error marks the result failed.
type Fn func(ctx context.Context) (string, error)

// Runner serializes background matching runs. Exactly one run may be active
// across all kinds; a second trigger is rejected with ALREADY_RUNNING rather
// than queued, so overlapping runs can never double-process a bid.
type Runner struct {
	mu      sync.Mutex
	active  Kind
	running bool
	results map[Kind]*Result
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		results: make(map[Kind]*Result),
		logger:  logger,
	}
}

// Start launches fn in the background if the run slot is free. The slot is
// claimed and released under the mutex, so two concurrent triggers can never
// both win.
func (r *Runner) Start(ctx context.Context, kind Kind, fn Fn) error {
	r.mu.Lock()
	if r.running {
		active := r.active
		r.mu.Unlock()
		return errors.NewConflictError(errors.CodeAlreadyRunning,
			fmt.Sprintf("a %s run is already in progress", active))
	}
	r.running = true
	r.active = kind
	r.mu.Unlock()

	r.logger.Info("job started", zap.String("kind", string(kind)))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		var result Result

		// A panicking run must still release the slot and leave a terminal
		// failed result, never a stuck "running" status.
		defer func() {
			if rec := recover(); rec != nil {
				result = Result{
					Success:   false,
					Message:   fmt.Sprintf("run panicked: %v", rec),
					Timestamp: time.Now().UTC(),
				}
				r.logger.Error("job panicked",
					zap.String("kind", string(kind)),
					zap.Any("panic", rec))
			}

			r.mu.Lock()
			r.running = false
			r.active = ""
			r.results[kind] = &result
			r.mu.Unlock()
		}()

		message, err := fn(ctx)
		result = Result{
			Success:   err == nil,
			Message:   message,
			Timestamp: time.Now().UTC(),
		}
		if err != nil {
			result.Message = err.Error()
			r.logger.Error("job failed",
				zap.String("kind", string(kind)),
				zap.Error(err))
			return
		}
		r.logger.Info("job finished",
			zap.String("kind", string(kind)),
			zap.String("message", message))
	}()

	return nil
}

// Status reports whether the given kind is currently running and its last
// terminal result.
func (r *Runner) Status(kind Kind) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Status{
		Running:    r.running && r.active == kind,
		LastResult: r.results[kind],
	}
}

// StatusAll reports the status of every known kind.
func (r *Runner) StatusAll() map[Kind]Status {
	out := make(map[Kind]Status, 2)
	for _, k := range []Kind{KindDailyBids, KindReevaluate} {
		out[k] = r.Status(k)
	}
	return out
}

// Wait blocks until all launched runs have finished. Used in tests and
// during graceful shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
