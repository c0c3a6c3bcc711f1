package ingestion_engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

// RefreshScheduler re-runs ingestion on a cron schedule. Runs never overlap;
// a tick that fires while a run is still going is skipped.
type RefreshScheduler struct {
	ingestor Ingestor
	expr     *cronexpr.Expression
	spec     string
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	onRun   func(*RunResult, error)
}

// NewRefreshScheduler parses a 5 or 6 field cron expression or a
// predefined one such as "@hourly".
func NewRefreshScheduler(spec string, ing Ingestor, log *zap.Logger) (*RefreshScheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse REFRESH_CRON %q: %w", spec, err)
	}
	return &RefreshScheduler{
		ingestor: ing,
		expr:     expr,
		spec:     spec,
		log:      log.Named("refresh"),
		now:      time.Now,
	}, nil
}

// OnRun registers a callback invoked after every scheduled run.
func (s *RefreshScheduler) OnRun(fn func(*RunResult, error)) {
	s.mu.Lock()
	s.onRun = fn
	s.mu.Unlock()
}

// Next returns the next fire time after t.
func (s *RefreshScheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Start blocks until ctx is cancelled.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.log.Info("refresh scheduler started", zap.String("cron", s.spec))
	for {
		next := s.expr.Next(s.now())
		if next.IsZero() {
			s.log.Warn("cron expression has no future fire time", zap.String("cron", s.spec))
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("refresh scheduler stopped")
			return
		case <-timer.C:
			go s.fire(ctx)
		}
	}
}

func (s *RefreshScheduler) fire(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous refresh still running, tick skipped")
		return
	}
	s.running = true
	cb := s.onRun
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res, err := s.ingestor.Run(ctx)
	if err != nil {
		s.log.Error("scheduled refresh failed", zap.Error(err))
	}
	if cb != nil {
		cb(res, err)
	}
}
