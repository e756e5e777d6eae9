/*
scheduler.go - Interval-driven reconciliation runner

PURPOSE:
  Triggers the reconciler on a fixed interval and records every run in
  the audit trail. The manual API trigger and the scheduler share the
  same RunRecorder so both paths leave identical audit records.

DESIGN:
  - Background goroutine with a configurable tick interval
  - An overlapping tick is suppressed, not queued: the engine returns
    ErrRunInProgress and the scheduler simply waits for the next tick
  - Run records get a UUID, start/end timestamps and the skip count

CONFIGURATION:
  - Interval: How often to reconcile (default: 1 minute)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewScheduler(recorder)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile endpoint (manual runs)
  - attendance/reconciler.go: ReconcileOnce and the overlap guard
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digitali/attendance-engine/attendance"
)

// =============================================================================
// RUN RECORDER - One reconciliation pass with an audit record
// =============================================================================

// RunRecorder wraps the engine so every invocation, scheduled or
// manual, lands in the run audit trail.
type RunRecorder struct {
	Runs   attendance.RunStore
	Engine *attendance.Reconciler
}

func NewRunRecorder(runs attendance.RunStore, engine *attendance.Reconciler) *RunRecorder {
	return &RunRecorder{Runs: runs, Engine: engine}
}

// RunOnce executes one reconciliation pass and records it. A suppressed
// overlapping run (ErrRunInProgress) is returned without an audit
// record; nothing actually ran.
func (rr *RunRecorder) RunOnce(ctx context.Context) (processed, skipped int, err error) {
	run := attendance.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    attendance.RunRunning,
	}

	processed, skipped, err = rr.Engine.ReconcileOnce(ctx)
	if errors.Is(err, attendance.ErrRunInProgress) {
		return 0, 0, err
	}

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.Processed = processed
	run.Skipped = skipped
	if err != nil {
		run.Status = attendance.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = attendance.RunCompleted
	}
	if saveErr := rr.Runs.SaveRun(ctx, run); saveErr != nil {
		log.Printf("[Scheduler] failed to record run %s: %v", run.ID, saveErr)
	}
	return processed, skipped, err
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler runs reconciliation on a fixed interval.
type Scheduler struct {
	Recorder *RunRecorder
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler with the default one-minute interval.
func NewScheduler(recorder *RunRecorder) *Scheduler {
	return &Scheduler{
		Recorder: recorder,
		Interval: time.Minute,
		Enabled:  true,
		stop:     make(chan bool),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run()

	log.Printf("[Scheduler] Started with interval: %v", s.Interval)
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		// Never started, or already stopped.
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	log.Println("[Scheduler] Stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.tick()

	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	processed, skipped, err := s.Recorder.RunOnce(ctx)
	switch {
	case errors.Is(err, attendance.ErrRunInProgress):
		log.Println("[Scheduler] previous run still executing, skipping tick")
	case err != nil:
		log.Printf("[Scheduler] run failed: %v", err)
	case processed > 0 || skipped > 0:
		log.Printf("[Scheduler] reconciled %d events (%d skipped)", processed, skipped)
	}
}
