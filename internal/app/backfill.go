package app

import (
	"context"
	"fmt"

	"x402index/internal/service"
)

// Backfill recomputes the reliability metrics of every indexed endpoint from
// stored pings, e.g. after changing the metrics window.
func (a *App) Backfill(ctx context.Context) error {
	return a.withService(ctx, func(svc *service.Service) error {
		updated, failed, err := svc.BackfillReliability(ctx)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.Out, "updated=%d failed=%d\n", updated, failed); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d endpoint(s) failed to backfill, check the logs", failed)
		}
		return nil
	})
}
