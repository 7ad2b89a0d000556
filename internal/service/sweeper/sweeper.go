package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/accounts/internal/logger"
)

const defaultInterval = time.Hour

type sessionRepo interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type recorder interface {
	SessionsSwept(n int64)
}

type nopRecorder struct{}

func (nopRecorder) SessionsSwept(int64) {}

// Sweeper removes expired sessions periodically
// Expired sessions are never returned by store anyway, sweeping only bounds its growth
type Sweeper struct {
	interval time.Duration
	sessions sessionRepo
	logger   logger.Logger
	recorder recorder
}

func New(sessions sessionRepo, interval time.Duration, l logger.Logger, r recorder) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if r == nil {
		r = nopRecorder{}
	}

	return &Sweeper{
		interval: interval,
		sessions: sessions,
		logger:   l.With("component", "sweeper"),
		recorder: r,
	}
}

// Sweep removes sessions expired by now
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	count, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	s.recorder.SessionsSwept(count)
	return count, nil
}

// Run sweeps on every tick until ctx is done
// Returned channel is closed when sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				count, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to sweep expired sessions", "error", err)
					continue
				}
				if count > 0 {
					s.logger.Info("Expired sessions swept", "count", count)
				}
			}
		}
	}()

	return idleStopped
}
