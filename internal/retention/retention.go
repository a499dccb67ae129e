// Package retention implements the periodic history garbage collection
// pass: age cap, then duplicate removal, then size cap, then count cap.
// It is grounded on database.c's delete_old_entries/delete_largest_entries
// style operations and kapricad.c's timer setup, realized here with a
// time.Timer re-armed after each pass instead of a timerfd (see
// internal/engine for the select loop this scheduler is driven from).
package retention

import (
	"time"

	"github.com/ArtsyMacaw/kaprica/internal/store"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"
)

const (
	// TickInterval is the periodic retention period; FirstFireDelay is how
	// long after daemon start the first tick fires.
	TickInterval   = 5 * time.Minute
	FirstFireDelay = 1 * time.Minute

	defaultExpireDays = 30
	defaultSizeCap    = 2 * 1024 * 1024 * 1024 // 2 GiB
	defaultLimit      = 10000

	largestBatchSize = 10
)

// Options configures the bounds the scheduler enforces; zero values fall
// back to built-in defaults.
type Options struct {
	ExpireDays int
	SizeCap    uint64
	Limit      int
}

func (o Options) withDefaults() Options {
	if o.ExpireDays == 0 {
		o.ExpireDays = defaultExpireDays
	}
	if o.SizeCap == 0 {
		o.SizeCap = defaultSizeCap
	}
	if o.Limit == 0 {
		o.Limit = defaultLimit
	}
	return o
}

// Scheduler owns the retention timer and runs retention passes against a
// store.
type Scheduler struct {
	store *store.Store
	opts  Options
	timer *time.Timer
}

// New creates a scheduler armed to fire first at FirstFireDelay, then every
// TickInterval thereafter. Call Timer() to obtain the channel to select on;
// call Run on each fire, then Rearm to schedule the next tick.
func New(s *store.Store, opts Options) *Scheduler {
	return &Scheduler{
		store: s,
		opts:  opts.withDefaults(),
		timer: time.NewTimer(FirstFireDelay),
	}
}

// Timer returns the channel the engine's select loop waits on.
func (r *Scheduler) Timer() <-chan time.Time { return r.timer.C }

// Rearm schedules the next periodic tick; call after Run on every fire.
func (r *Scheduler) Rearm() { r.timer.Reset(TickInterval) }

// Stop releases the underlying timer.
func (r *Scheduler) Stop() { r.timer.Stop() }

// Run executes one retention pass: age cap, then duplicate removal, then
// size cap (deleting the largest entries in batches of 10 until under the
// cap), then count cap (deleting the oldest excess entries), followed by a
// VACUUM if the size pass did anything, else a lightweight PRAGMA
// optimize. The size and count passes never delete servedID, the entry
// the engine is currently serving (servedID == 0 means nothing is served)
// — the caller passes that id so this package doesn't need to know about
// engine state. The age and duplicate passes do not exclude servedID.
func (r *Scheduler) Run(servedID int64) {
	didLargestPass := false

	if n, err := r.store.DeleteOldEntries(-r.opts.ExpireDays); err != nil {
		logger.Warn().Err(err).Msg("retention: age cap pass failed")
	} else if n > 0 {
		logger.Info().Int64("deleted", n).Msg("retention: expired entries removed")
	}

	if n, err := r.store.DeleteDuplicateEntries(); err != nil {
		logger.Warn().Err(err).Msg("retention: dedup pass failed")
	} else if n > 0 {
		logger.Info().Int64("deleted", n).Msg("retention: duplicate entries removed")
	}

	for {
		size, err := r.store.GetSize()
		if err != nil {
			logger.Warn().Err(err).Msg("retention: size check failed")
			break
		}
		if size <= r.opts.SizeCap {
			break
		}
		n, err := r.deleteLargestExcluding(servedID, largestBatchSize)
		if err != nil {
			logger.Warn().Err(err).Msg("retention: size cap pass failed")
			break
		}
		didLargestPass = true
		logger.Info().Int64("deleted", n).Uint64("size", size).Msg("retention: largest entries removed")
		if n == 0 {
			break // nothing left to delete; avoid spinning
		}
	}

	total, err := r.store.GetTotalEntries()
	if err != nil {
		logger.Warn().Err(err).Msg("retention: count check failed")
	} else if int(total) > r.opts.Limit {
		excess := int(total) - r.opts.Limit
		n, err := r.deleteLastExcluding(servedID, excess)
		if err != nil {
			logger.Warn().Err(err).Msg("retention: count cap pass failed")
		} else {
			logger.Info().Int64("deleted", n).Msg("retention: oldest entries removed to satisfy count cap")
		}
	}

	if didLargestPass {
		if err := r.store.Vacuum(); err != nil {
			logger.Warn().Err(err).Msg("retention: vacuum failed")
		}
	} else if err := r.store.Optimize(); err != nil {
		logger.Warn().Err(err).Msg("retention: optimize failed")
	}
}

// deleteLargestExcluding and deleteLastExcluding guarantee that the size
// and count passes never delete the currently-served entry.
func (r *Scheduler) deleteLargestExcluding(servedID int64, n int) (int64, error) {
	return r.store.DeleteLargestEntriesExcluding(servedID, n)
}

func (r *Scheduler) deleteLastExcluding(servedID int64, n int) (int64, error) {
	return r.store.DeleteLastEntriesExcluding(servedID, n)
}
