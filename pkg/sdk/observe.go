package vecmatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for operations outside a declared collection.
const (
	noCollection      = "none"
	unknownCollection = "other"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	matchCache *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecmatch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type, collection and status.",
		}, []string{"operation", "collection", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vecmatch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "collection"}),
		matchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecmatch",
			Subsystem: "sdk",
			Name:      "match_cache_total",
			Help:      "Successful matches by collection and response cache outcome.",
		}, []string{"collection", "result"}), // "hit" / "miss"
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.matchCache); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("vecmatch: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("vecmatch: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
// Collection labels are limited to the collections declared on New.
type observer struct {
	logger      *slog.Logger
	metrics     *sdkMetrics
	collections map[string]struct{}
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer, collections []string) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	known := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		known[c] = struct{}{}
	}
	return &observer{logger: logger, metrics: m, collections: known}, nil
}

func (o *observer) collectionLabel(name string) string {
	if name == "" {
		return noCollection
	}
	if _, ok := o.collections[name]; !ok {
		return unknownCollection
	}
	return name
}

func (o *observer) observe(
	op, collection string, start time.Time, err error,
) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	label := o.collectionLabel(collection)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, label, status).Inc()
		o.metrics.duration.WithLabelValues(op, label).Observe(
			dur.Seconds(),
		)
	}

	if o.logger != nil {
		if err != nil {
			o.logger.Warn("operation failed",
				"op", op,
				"collection", collection,
				"duration", dur,
				"error", err,
			)
		} else {
			o.logger.Debug("operation completed",
				"op", op,
				"collection", collection,
				"duration", dur,
			)
		}
	}
}

// observeMatch records a match like observe, plus whether a successful
// match was answered from the response cache.
func (o *observer) observeMatch(collection string, start time.Time, cached bool, err error) {
	if o == nil {
		return
	}
	o.observe("match", collection, start, err)
	if err != nil || o.metrics == nil {
		return
	}
	result := "miss"
	if cached {
		result = "hit"
	}
	o.metrics.matchCache.WithLabelValues(o.collectionLabel(collection), result).Inc()
}
