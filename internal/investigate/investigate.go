// Package investigate drives the verifier across the model lattice for
// (subject, property) pairs, recording each verdict with closure.
package investigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/advlattice/internal/lattice"
	"github.com/ppiankov/advlattice/internal/model"
	"github.com/ppiankov/advlattice/internal/results"
	"github.com/ppiankov/advlattice/internal/selector"
)

// ErrGoalNotDecided means a model handed to the verifier was still
// undecided after its verdict was recorded.
var ErrGoalNotDecided = errors.New("goal not decided after verdict")

// Backend produces a verdict for one model.
type Backend interface {
	Verify(ctx context.Context, subject, property string, m model.Model) (results.Verdict, error)
}

// Store is the verdict cache as seen by the driver.
type Store interface {
	Get(subject, property, modelKey string) (results.Verdict, bool)
	SetWithClosure(subject, property string, m model.Model, v results.Verdict) (int, error)
}

// Step describes one verifier call and its effect on the cache.
type Step struct {
	RunID    string
	Subject  string
	Property string
	Model    model.Model
	Verdict  results.Verdict
	Recorded int // verdicts written, including the model's own
	Duration time.Duration
}

// Summary is the outcome of one investigation.
type Summary struct {
	RunID    string        `json:"run_id"`
	Subject  string        `json:"subject"`
	Property string        `json:"property"`
	Calls    int           `json:"calls"`
	Recorded int           `json:"recorded"`
	Duration time.Duration `json:"duration"`
}

// Investigator runs the select, verify, record loop.
type Investigator struct {
	store    Store
	selector *selector.Selector
	backend  Backend
	logger   *slog.Logger
	progress func(Step)
}

// Option configures an Investigator.
type Option func(*Investigator)

// WithLogger sets the logger for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(inv *Investigator) {
		if l != nil {
			inv.logger = l
		}
	}
}

// WithProgress registers a callback invoked after every verifier call.
// It may be called from several goroutines under RunAll.
func WithProgress(fn func(Step)) Option {
	return func(inv *Investigator) { inv.progress = fn }
}

// New returns an investigator over the traversal's universe.
func New(t *lattice.Traversal, store Store, b Backend, opts ...Option) *Investigator {
	inv := &Investigator{
		store:    store,
		selector: selector.New(t, store),
		backend:  b,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Investigate decides every model of the universe for the pair. A
// backend failure stops the run without recording anything for the
// failing model; verdicts recorded earlier stay in the cache.
func (inv *Investigator) Investigate(ctx context.Context, subject, property string) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Subject: subject, Property: property}
	log := inv.logger.With("run_id", sum.RunID, "subject", subject, "property", property)
	start := time.Now()
	fail := func(err error) (Summary, error) {
		sum.Duration = time.Since(start)
		return sum, err
	}

	inv.selector.Reset(subject, property)
	log.Info("investigation started", "open", inv.selector.Remaining(subject, property))

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		m, ok, err := inv.selector.Next(subject, property)
		if err != nil {
			return fail(err)
		}
		if !ok {
			break
		}

		callStart := time.Now()
		v, err := inv.backend.Verify(ctx, subject, property, m)
		sum.Calls++
		if err != nil {
			log.Error("verifier failed", "model", m.DBKey(), "error", err)
			return fail(fmt.Errorf("investigate: %s/%s at %s: %w", subject, property, m.DBKey(), err))
		}

		n, err := inv.store.SetWithClosure(subject, property, m, v)
		sum.Recorded += n
		if err != nil {
			return fail(fmt.Errorf("investigate: record %s/%s at %s: %w", subject, property, m.DBKey(), err))
		}
		if _, ok := inv.store.Get(subject, property, m.DBKey()); !ok {
			return fail(fmt.Errorf("investigate: %s/%s at %s: %w", subject, property, m.DBKey(), ErrGoalNotDecided))
		}

		step := Step{
			RunID: sum.RunID, Subject: subject, Property: property,
			Model: m, Verdict: v, Recorded: n, Duration: time.Since(callStart),
		}
		log.Debug("goal decided", "model", m.DBKey(), "verdict", v, "recorded", n, "duration", step.Duration)
		if inv.progress != nil {
			inv.progress(step)
		}
	}

	sum.Duration = time.Since(start)
	log.Info("investigation finished", "calls", sum.Calls, "recorded", sum.Recorded, "duration", sum.Duration)
	return sum, nil
}

// RunAll investigates independent pairs with a fixed pool of workers
// sharing the store. Summaries are returned in pair order. Failures of
// single pairs are joined into the returned error; other pairs proceed.
func (inv *Investigator) RunAll(ctx context.Context, pairs []results.Pair, workers int) ([]Summary, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	summaries := make([]Summary, len(pairs))
	errs := make([]error, len(pairs))
	queue := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				p := pairs[idx]
				summaries[idx], errs[idx] = inv.Investigate(ctx, p.Subject, p.Property)
			}
		}()
	}

feed:
	for idx := range pairs {
		select {
		case queue <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return summaries, errors.Join(errs...)
}
