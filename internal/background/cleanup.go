package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/querydesk/querydesk/internal/session"
)

// SessionSweeper periodically evicts expired sessions from the store.
// Reads already expire lazily; the sweep keeps memory bounded for sessions
// that are never touched again.
type SessionSweeper struct {
	sessions *session.Store
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(sessions *session.Store, logger *slog.Logger, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the periodic sweep until Stop is called or the context ends
func (sw *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if pruned := sw.sessions.PruneExpired(); pruned > 0 {
				sw.logger.Info("expired sessions pruned",
					slog.Int("pruned", pruned),
					slog.Int("live", sw.sessions.Len()))
			}
		case <-sw.stopCh:
			sw.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			sw.logger.Info("session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the sweeper to stop
func (sw *SessionSweeper) Stop() {
	close(sw.stopCh)
}
