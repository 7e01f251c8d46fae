package core

// scheduler.go runs background maintenance for the service.
//
// The session sweeper removes sessions that have not been touched within the
// configured TTL. It is long-running and context-aware for graceful shutdown;
// lookups also reject expired sessions, so the sweeper only bounds memory.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired sessions are removed.
const DefaultSweepInterval = time.Minute

// StartSweeper removes expired sessions every interval until ctx is done.
// It blocks; run it in its own goroutine.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	slog.Info("session sweeper started",
		"interval", interval,
		"session_ttl", s.cfg.SessionTTL,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if n := s.Sweep(); n > 0 {
				slog.Info("expired sessions removed",
					"sessions_removed", n,
					"sessions_live", s.SessionCount(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
