// Package sweeper периодически удаляет просроченные непрозрачные токены.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredSweeper удаляет записи с истекшим сроком
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Counter учитывает количество удаленных записей
type Counter interface {
	AddSwept(n int)
}

type nopCounter struct{}

func (nopCounter) AddSwept(int) {}

// Sweeper фоновая очистка по тикеру
type Sweeper struct {
	target   ExpiredSweeper
	counter  Counter
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
}

// Option настраивает Sweeper
type Option func(*Sweeper)

// WithCounter подключает счетчик (метрики)
func WithCounter(c Counter) Option {
	return func(s *Sweeper) {
		s.counter = c
	}
}

// WithClock подменяет часы
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New создает Sweeper
func New(target ExpiredSweeper, interval time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
		counter:  nopCounter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run выполняет очистку сразу и затем каждый interval, пока ctx не отменен.
// Ошибка очистки логируется, цикл продолжается.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "token sweeper started", slog.Duration("interval", s.interval))

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "token sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce один проход очистки, возвращает число удаленных записей
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.target.SweepExpired(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "failed to sweep expired tokens", slog.Any("error", err))
		}
		return 0
	}

	s.counter.AddSwept(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "expired tokens removed", slog.Int("count", n))
	} else {
		s.logger.DebugContext(ctx, "no expired tokens")
	}
	return n
}
