// Package notify fans tracker alerts out to the configured delivery channels.
package notify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/metrics"
	"github.com/rewired-gh/paceoracle/internal/models"
)

// Notifier delivers one alert to one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) error
}

// StatusNotifier is implemented by channels that also carry operator notices.
type StatusNotifier interface {
	SendError(ctx context.Context, cycleErr error) error
	SendRecovery(ctx context.Context, failureCount int) error
}

// Multi delivers alerts to every channel concurrently. Each channel receives alerts in order.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out over notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Len returns the number of channels.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Dispatch sends every alert to every channel and returns the number of failed deliveries.
// Failures are logged; one channel failing never blocks another.
func (m *Multi) Dispatch(ctx context.Context, alerts []models.Alert) int {
	if len(alerts) == 0 || len(m.notifiers) == 0 {
		return 0
	}

	failures := make([]int, len(m.notifiers))
	var g errgroup.Group
	for i, n := range m.notifiers {
		i, n := i, n
		g.Go(func() error {
			for _, a := range alerts {
				if err := n.Send(ctx, a); err != nil {
					logger.Error("Failed to deliver %s alert for game %s via %s: %v", a.Kind, a.GameID, n.Name(), err)
					metrics.AlertsDelivered.WithLabelValues(n.Name(), "error").Inc()
					failures[i]++
					continue
				}
				metrics.AlertsDelivered.WithLabelValues(n.Name(), "ok").Inc()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	total := 0
	for _, f := range failures {
		total += f
	}
	return total
}

// NotifyError forwards a cycle error to every channel that supports operator notices.
func (m *Multi) NotifyError(ctx context.Context, cycleErr error) {
	for _, n := range m.notifiers {
		if s, ok := n.(StatusNotifier); ok {
			if err := s.SendError(ctx, cycleErr); err != nil {
				logger.Error("Failed to send error notice via %s: %v", n.Name(), err)
			}
		}
	}
}

// NotifyRecovery forwards a recovery notice to every channel that supports operator notices.
func (m *Multi) NotifyRecovery(ctx context.Context, failureCount int) {
	for _, n := range m.notifiers {
		if s, ok := n.(StatusNotifier); ok {
			if err := s.SendRecovery(ctx, failureCount); err != nil {
				logger.Error("Failed to send recovery notice via %s: %v", n.Name(), err)
			}
		}
	}
}
