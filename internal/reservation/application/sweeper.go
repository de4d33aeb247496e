package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically releases pending reservations past their expiry.
type Sweeper struct {
	log      *slog.Logger
	svc      *Service
	interval time.Duration
	batch    int
}

func NewSweeper(log *slog.Logger, svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{log: log, svc: svc, interval: interval, batch: 100}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			n, err := s.svc.ExpirePending(ctx, s.batch)
			if err != nil {
				s.log.Error("expire pending reservas failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired reservas released", "count", n)
			}
		}
	}
}
