package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load results used as metric labels.
const (
	ResultOK         = "ok"
	ResultLoadError  = "load_error"
	ResultParseError = "parse_error"
	ResultInvalid    = "invalid"
)

// Metrics provides Prometheus metrics for settings loading. A nil *Metrics
// records nothing.
type Metrics struct {
	loads    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	issues   *prometheus.CounterVec
	reloads  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settings",
				Name:      "loads_total",
				Help:      "Total number of settings loads",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "settings",
				Name:      "load_duration_seconds",
				Help:      "Duration of settings loads in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settings",
				Name:      "issues_total",
				Help:      "Total number of validation issues by code",
			},
			[]string{"code"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "settings",
				Name:      "reloads_total",
				Help:      "Total number of reloads triggered by file changes",
			},
			[]string{"result"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.loads, m.duration, m.issues, m.reloads} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register settings metrics: %w", err)
		}
	}
	return m, nil
}

// resultOf classifies a load error for labels and logs.
func resultOf(err error) string {
	var perr *LoadingParseError
	var verr *LoadingValidationError
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &perr):
		return ResultParseError
	case errors.As(err, &verr):
		return ResultInvalid
	default:
		return ResultLoadError
	}
}

func (m *Metrics) observeLoad(err error, took time.Duration) {
	if m == nil {
		return
	}
	result := resultOf(err)
	m.loads.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(took.Seconds())
	var verr *LoadingValidationError
	if errors.As(err, &verr) {
		for _, it := range verr.Issues {
			m.issues.WithLabelValues(it.Code).Inc()
		}
	}
}

func (m *Metrics) observeReload(err error) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(resultOf(err)).Inc()
}
