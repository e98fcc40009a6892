package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PaymentExpirer fails payment orders left PENDING for longer than ttl.
type PaymentExpirer interface {
	ExpireStalePayments(ctx context.Context, ttl time.Duration) (int64, error)
}

// Scheduler runs background maintenance tasks.
type Scheduler struct {
	payments PaymentExpirer
	interval time.Duration
	ttl      time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(payments PaymentExpirer, interval, ttl time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		payments: payments,
		interval: interval,
		ttl:      ttl,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs the payment expiry loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("payment_expiry_interval", s.interval),
		zap.Duration("payment_order_ttl", s.ttl),
	)

	s.wg.Add(1)
	go s.runPaymentExpiryTask(ctx)
}

// Stop signals the tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runPaymentExpiryTask(ctx context.Context) {
	defer s.wg.Done()

	// first sweep right away
	s.expirePayments(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expirePayments(ctx)
		case <-s.stopChan:
			s.logger.Info("Payment expiry task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Payment expiry task cancelled")
			return
		}
	}
}

func (s *Scheduler) expirePayments(ctx context.Context) {
	n, err := s.payments.ExpireStalePayments(ctx, s.ttl)
	if err != nil {
		s.logger.Error("Failed to expire stale payments", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Stale payment orders expired", zap.Int64("count", n))
	}
}
