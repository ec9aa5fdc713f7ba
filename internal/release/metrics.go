package release

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
)

const metricNamespace = "autorelease"

const (
	runsMetricName        = "runs_total"
	runDurationMetricName = "run_duration_seconds"
	releasedMetricName    = "last_released_timestamp_seconds"
)

const (
	resultLabel     = "result"
	repositoryLabel = "repository"
)

type metricCollector struct {
	logger       *zap.Logger
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastReleased *prometheus.GaugeVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		runs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      runsMetricName,
				Help:      "count of finished release runs",
			},
			[]string{repositoryLabel, resultLabel},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      runDurationMetricName,
				Help:      "duration of release runs",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{repositoryLabel},
		),
		lastReleased: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      releasedMetricName,
				Help:      "unix time of the last successful release",
			},
			[]string{repositoryLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) RunFinished(repository string, res *Result, duration time.Duration) {
	cnt, err := m.runs.GetMetricWith(prometheus.Labels{
		repositoryLabel: repository,
		resultLabel:     res.Kind.String(),
	})
	if err != nil {
		m.logGetMetricFailed(runsMetricName, err)
		return
	}

	cnt.Inc()

	obs, err := m.runDuration.GetMetricWith(prometheus.Labels{repositoryLabel: repository})
	if err != nil {
		m.logGetMetricFailed(runDurationMetricName, err)
		return
	}

	obs.Observe(duration.Seconds())

	if res.Kind != Released {
		return
	}

	g, err := m.lastReleased.GetMetricWith(prometheus.Labels{repositoryLabel: repository})
	if err != nil {
		m.logGetMetricFailed(releasedMetricName, err)
		return
	}

	g.SetToCurrentTime()
}
