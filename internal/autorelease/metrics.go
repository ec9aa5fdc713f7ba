package autorelease

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
)

const metricNamespace = "autorelease_evloop"

const processedEventsMetricName = "processed_github_events_total"

const matchResultLabel = "match_result"

type metricCollector struct {
	logger          *zap.Logger
	processedEvents *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		processedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedEventsMetricName,
				Help:      "count of processed github webhook events",
			},
			[]string{matchResultLabel},
		),
	}
}

func (m *metricCollector) EventProcessed(res MatchResult) {
	cnt, err := m.processedEvents.GetMetricWith(prometheus.Labels{matchResultLabel: res.String()})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", processedEventsMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
