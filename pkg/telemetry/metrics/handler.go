package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the collector's registry. Scrapes themselves are counted
// in promhttp_metric_handler_requests_total on the same registry, and
// encoding errors are reported through promhttp_metric_handler_errors_total
// instead of failing the scrape. A disabled collector answers 404.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return http.NotFoundHandler()
	}

	c.handlerOnce.Do(func() {
		inner := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
			Registry:          c.registry,
		})
		c.handler = promhttp.InstrumentMetricHandler(c.registry, inner)
	})
	return c.handler
}
