package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/yourusername/reolink-bridge/internal/core"
	"go.uber.org/zap"
)

// Keeper drives a Manager from a background goroutine for hosts that do
// not want to run their own renewal loop. It polls RenewalDue on a fixed
// cadence and renews when due, retrying unreachable-device failures with
// exponential backoff. Credential and protocol failures are not retried;
// they stop the keeper and surface through OnFatal.
//
// The keeper is the sole owner of the manager while running, which keeps
// the manager's sequential-use contract intact.
type Keeper struct {
	manager  *Manager
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	onFatal  func(error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// KeeperConfig holds the settings for a Keeper.
type KeeperConfig struct {
	Manager *Manager
	// PollInterval is the renewal-due polling cadence.
	PollInterval time.Duration
	// Clock defaults to the wall clock; tests inject a mock.
	Clock  clock.Clock
	Logger *zap.Logger
	// OnFatal is called once when the keeper gives up on a lease
	// (authentication or protocol failure). Optional.
	OnFatal func(error)
}

// NewKeeper creates a keeper around an already-subscribed manager.
func NewKeeper(config KeeperConfig) *Keeper {
	interval := config.PollInterval
	if interval == 0 {
		interval = 10 * time.Second
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Keeper{
		manager:  config.Manager,
		interval: interval,
		clock:    clk,
		logger:   logger,
		onFatal:  config.OnFatal,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the renewal loop.
func (k *Keeper) Start() {
	k.logger.Info("Starting subscription keeper",
		zap.Duration("poll_interval", k.interval),
	)

	go k.run()
}

// Stop terminates the renewal loop and waits for it to exit. The lease
// itself is left alone; callers unsubscribe via the manager afterwards.
func (k *Keeper) Stop() {
	k.cancel()
	<-k.done

	k.logger.Info("Subscription keeper stopped")
}

func (k *Keeper) run() {
	defer close(k.done)

	ticker := k.clock.Ticker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.ctx.Done():
			return
		case <-ticker.C:
			if !k.manager.RenewalDue(k.clock.Now()) {
				continue
			}
			if err := k.renewWithRetry(); err != nil {
				k.logger.Error("Giving up on event subscription", zap.Error(err))
				if k.onFatal != nil {
					k.onFatal(err)
				}
				return
			}
		}
	}
}

// renewWithRetry renews the lease, backing off and retrying while the
// device is unreachable. The retry window is capped at the poll interval
// so a long outage still yields one fresh attempt per tick.
func (k *Keeper) renewWithRetry() error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = k.interval

	operation := func() error {
		err := k.manager.Renew(k.ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, core.ErrDeviceUnreachable) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		k.logger.Warn("Renewal attempt failed, backing off",
			zap.Duration("next_attempt_in", next),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, k.ctx), notify)
	if err == nil {
		return nil
	}

	if errors.Is(err, core.ErrDeviceUnreachable) || errors.Is(err, context.Canceled) {
		// Still unreachable after the retry window, or shutting down.
		// The lease fields are untouched, so the next tick retries.
		return nil
	}

	return err
}
