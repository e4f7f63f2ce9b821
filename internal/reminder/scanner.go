package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/belagenda/belagenda/internal/model"
)

// Store is the scanner's view of the appointment collection.
// MarkReminderAttempted must set the reminder flag durably and never reset it;
// it is called regardless of dispatch outcome, which is what makes a re-scan
// of the same window idempotent.
type Store interface {
	ListPendingInWindow(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	MarkReminderAttempted(ctx context.Context, id string, outcome Outcome) error
}

// Notifier abstracts the Dispatcher for the scanner.
type Notifier interface {
	Notify(ctx context.Context, appt model.Appointment) Outcome
}

type Scanner struct {
	store           Store
	notifier        Notifier
	logger          *slog.Logger
	interval        time.Duration
	lead            time.Duration
	dispatchTimeout time.Duration
	now             func() time.Time
}

type ScannerConfig struct {
	// Interval is the scan period. It must stay shorter than Lead or slots
	// can slip through between cycles.
	Interval time.Duration
	// Lead is the rolling window [now, now+Lead) in which a pending
	// appointment becomes a reminder candidate.
	Lead time.Duration
	// DispatchTimeout bounds one delivery attempt so a hung channel call
	// cannot stall the cycle.
	DispatchTimeout time.Duration
}

func NewScanner(store Store, notifier Notifier, logger *slog.Logger, cfg ScannerConfig) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lead <= 0 {
		cfg.Lead = time.Hour
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &Scanner{
		store:           store,
		notifier:        notifier,
		logger:          logger,
		interval:        cfg.Interval,
		lead:            cfg.Lead,
		dispatchTimeout: cfg.DispatchTimeout,
		now:             time.Now,
	}
}

// Run executes scan cycles until the context is cancelled. Cycles run on a
// single goroutine, so a cycle always completes before the next tick is
// processed.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				s.logger.Error("reminder scan failed", "err", err)
			}
		}
	}
}

// Scan runs one cycle: select candidates inside the lead window, attempt
// delivery for each, and record the attempt whatever the outcome. A failing
// candidate never aborts the rest of the cycle.
func (s *Scanner) Scan(ctx context.Context) error {
	from := s.now()
	to := from.Add(s.lead)

	candidates, err := s.store.ListPendingInWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	for _, appt := range candidates {
		outcome := s.dispatch(ctx, appt)

		if err := s.store.MarkReminderAttempted(ctx, appt.ID, outcome); err != nil {
			// Typically the appointment was cancelled mid-cycle; there is
			// nothing left to mark.
			s.logger.Warn("reminder attempt not recorded",
				"appointment_id", appt.ID, "outcome", outcome.String(), "err", err)
			continue
		}
		s.logger.Info("reminder attempted",
			"appointment_id", appt.ID,
			"scheduled_at", appt.ScheduledAt,
			"outcome", outcome.String(),
		)
	}
	return nil
}

func (s *Scanner) dispatch(ctx context.Context, appt model.Appointment) Outcome {
	dispatchCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	return s.notifier.Notify(dispatchCtx, appt)
}
