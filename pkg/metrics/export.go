package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/migadu/vquota/config"
	"github.com/migadu/vquota/logger"
)

// Export writes the metrics gathered from g to the configured textfile
// and Pushgateway. A check runs for milliseconds, far too short to be
// scraped, so its metrics are handed off once on exit. Both targets hold
// the last check only: the textfile is replaced and the push replaces the
// whole group of this instance, so no series of an earlier check remains.
//
// The push is bounded by the configured push timeout.
func Export(ctx context.Context, cfg config.MetricsConfig, g prometheus.Gatherer) error {
	var errs []error

	if cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Textfile, g); err != nil {
			errs = append(errs, fmt.Errorf("write textfile '%s': %w", cfg.Textfile, err))
		} else {
			logger.DebugContext(ctx, "Metrics written", "textfile", cfg.Textfile)
		}
	}

	if cfg.PushgatewayURL != "" {
		timeout, err := cfg.GetPushTimeout()
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		pusher := push.New(cfg.PushgatewayURL, cfg.Job).Gatherer(g)
		if host, err := os.Hostname(); err == nil {
			pusher = pusher.Grouping("instance", host)
		}
		if err := pusher.PushContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("push to '%s': %w", cfg.PushgatewayURL, err))
		} else {
			logger.DebugContext(ctx, "Metrics pushed", "url", cfg.PushgatewayURL, "job", cfg.Job)
		}
	}

	return errors.Join(errs...)
}
