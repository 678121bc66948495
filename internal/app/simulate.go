package app

import (
	"context"
	"errors"
	"time"

	"x402index/internal/alerting"
)

// SimulateAlert pushes a synthetic deactivation alert for resourceURL through
// the configured notifiers.
func (a *App) SimulateAlert(ctx context.Context, resourceURL string, failures int) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	if resourceURL == "" {
		return errors.New("--url is required")
	}

	note := alerting.Notification{
		At:                  time.Now().UTC(),
		EndpointID:          "simulated",
		ResourceURL:         resourceURL,
		Description:         "Simulated endpoint",
		ConsecutiveFailures: failures,
		LastError:           "simulated failure",
		Channels:            a.Config.Alerting.Channels,
	}
	return a.newNotifier().Notify(ctx, note)
}
