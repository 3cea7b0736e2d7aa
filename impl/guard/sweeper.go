package guard

import (
	"context"
	"log/slog"
	"time"

	"gatebot/lib/sl"
)

// Sweeper periodically deletes credentials whose validity window,
// including grace, has passed. Validation is time-checked at read
// time, so this only keeps the store bounded.
type Sweeper struct {
	store    CredentialStore
	conf     Config
	interval time.Duration
	log      *slog.Logger
	clock    func() time.Time
	stopCh   chan struct{}
	done     chan struct{}
}

func NewSweeper(store CredentialStore, conf Config, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		conf:     conf,
		interval: interval,
		log:      log.With(sl.Module("guard.sweeper")),
		clock:    time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopCh:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.done
}

func (s *Sweeper) sweep() {
	before := s.clock().Add(-s.conf.Grace)
	removed, err := s.store.DeleteExpiredCredentials(context.Background(), before)
	if err != nil {
		s.log.Warn("sweeping credentials", sl.Err(err))
		return
	}
	if removed > 0 {
		s.log.Debug("swept expired credentials", slog.Int64("count", removed))
	}
}
