package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/yourusername/reolink-bridge/internal/core"
	"go.uber.org/zap"
)

// State is the lifecycle state of a subscription.
type State int

const (
	// StateUnsubscribed means no lease is held.
	StateUnsubscribed State = iota
	// StateActive means a lease is held and counted as valid.
	StateActive
	// StateExpiring means the lease is valid but renewal is due.
	StateExpiring
	// StateFailed means the last renewal attempt errored while the
	// existing lease is still counted as valid.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateActive:
		return "active"
	case StateExpiring:
		return "expiring"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transporter is the wire-level side of the subscription lifecycle.
// *Transport implements it; tests substitute fakes.
type Transporter interface {
	Subscribe(ctx context.Context, webhookURL string) (ref string, lease Lease, err error)
	Renew(ctx context.Context, ref string) (Lease, error)
	Unsubscribe(ctx context.Context, ref string) error
}

// Manager owns the lease state machine for one camera-and-webhook pair.
// It decides when renewal is due and delegates the wire work to the
// transport. It runs no background timers; the caller (or a Keeper)
// drives it by polling RenewalDue.
//
// A Manager is single-owner: Subscribe, Renew and Unsubscribe must not
// be invoked concurrently.
type Manager struct {
	transport Transporter
	threshold time.Duration
	clock     clock.Clock
	logger    *zap.Logger

	state      State
	ref        string
	lease      Lease
	webhookURL string
}

// ManagerConfig holds the settings for a Manager.
type ManagerConfig struct {
	Transport Transporter
	// RenewalThreshold is the remaining-lease margin at or below which a
	// renewal is reported as due.
	RenewalThreshold time.Duration
	// Clock defaults to the wall clock; tests inject a mock.
	Clock  clock.Clock
	Logger *zap.Logger
}

// NewManager creates a manager in the unsubscribed state.
func NewManager(config ManagerConfig) *Manager {
	threshold := config.RenewalThreshold
	if threshold == 0 {
		threshold = 100 * time.Second
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.New()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		transport: config.Transport,
		threshold: threshold,
		clock:     clk,
		logger:    logger,
		state:     StateUnsubscribed,
	}
}

// Subscribe establishes a new lease with the given webhook delivery
// target. It is only legal while unsubscribed; holding a lease and
// subscribing again would leak the device-side subscription.
func (m *Manager) Subscribe(ctx context.Context, webhookURL string) error {
	if m.state != StateUnsubscribed {
		return fmt.Errorf("%w: subscribe while %s", core.ErrInvalidState, m.state)
	}

	ref, lease, err := m.transport.Subscribe(ctx, webhookURL)
	if err != nil {
		// No state change: the caller may retry or give up.
		return fmt.Errorf("subscribe failed: %w", err)
	}

	m.state = StateActive
	m.ref = ref
	m.lease = lease
	m.webhookURL = webhookURL

	m.logger.Info("Event subscription established",
		zap.String("webhook_url", webhookURL),
		zap.Duration("lease_duration", lease.Duration),
	)

	return nil
}

// Renew refreshes the current lease. Legal while active or failed; a
// failed manager recovers to active on success. On failure the stored
// lease fields are left untouched so RenewalDue keeps reporting from the
// stale lease and a polling caller naturally retries on its own schedule.
func (m *Manager) Renew(ctx context.Context) error {
	if m.state != StateActive && m.state != StateFailed {
		return fmt.Errorf("%w: renew while %s", core.ErrInvalidState, m.state)
	}

	lease, err := m.transport.Renew(ctx, m.ref)
	if err != nil {
		m.state = StateFailed
		m.logger.Warn("Event subscription renewal failed",
			zap.Duration("remaining", m.lease.Remaining(m.clock.Now())),
			zap.Error(err),
		)
		return fmt.Errorf("renew failed: %w", err)
	}

	m.state = StateActive
	m.lease = lease

	m.logger.Info("Event subscription renewed",
		zap.Duration("lease_duration", lease.Duration),
	)

	return nil
}

// Unsubscribe releases the device-side lease and resets local state.
// Idempotent: calling it while already unsubscribed is a no-op success.
// An unreachable device does not block the local reset; the goal is to
// stop caring about the lease, not to guarantee acknowledgement.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	if m.state == StateUnsubscribed {
		return nil
	}

	if err := m.transport.Unsubscribe(ctx, m.ref); err != nil {
		if !errors.Is(err, core.ErrDeviceUnreachable) {
			m.logger.Warn("Device-side unsubscribe failed", zap.Error(err))
		} else {
			m.logger.Debug("Device unreachable during unsubscribe", zap.Error(err))
		}
	}

	m.state = StateUnsubscribed
	m.ref = ""
	m.lease = Lease{}
	m.webhookURL = ""

	m.logger.Info("Event subscription released")

	return nil
}

// RenewalDue reports whether the lease needs renewing at the given time.
// Always callable; false while unsubscribed.
func (m *Manager) RenewalDue(now time.Time) bool {
	if m.state == StateUnsubscribed {
		return false
	}
	return m.lease.RenewalDue(now, m.threshold)
}

// Remaining returns the lease time left at the given time. Zero while
// unsubscribed.
func (m *Manager) Remaining(now time.Time) time.Duration {
	if m.state == StateUnsubscribed {
		return 0
	}
	return m.lease.Remaining(now)
}

// State returns the current lifecycle state. An active lease whose
// renewal is due reports as expiring; expiring is derived from the lease
// clock, never stored.
func (m *Manager) State() State {
	if m.state == StateActive && m.lease.RenewalDue(m.clock.Now(), m.threshold) {
		return StateExpiring
	}
	return m.state
}

// Lease returns a copy of the current lease fields.
func (m *Manager) Lease() Lease {
	return m.lease
}

// WebhookURL returns the delivery target fixed at subscribe time.
func (m *Manager) WebhookURL() string {
	return m.webhookURL
}
