package kv

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const kvMetricNamePrefix = "byteedu_kv_"

type instrumentedStore struct {
	next    Store
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// Instrument wraps next so every operation is counted and timed on registerer.
func Instrument(next Store, registerer prometheus.Registerer) (Store, error) {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: kvMetricNamePrefix + "operations_total",
			Help: "Total number of key-value operations by operation and result",
		},
		[]string{"op", "result"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    kvMetricNamePrefix + "operation_duration_seconds",
			Help:    "Latency of key-value operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"op"},
	)
	if err := registerer.Register(ops); err != nil {
		return nil, err
	}
	if err := registerer.Register(latency); err != nil {
		return nil, err
	}
	return &instrumentedStore{next: next, ops: ops, latency: latency}, nil
}

func (s *instrumentedStore) observe(op string, started time.Time, err error) {
	s.latency.WithLabelValues(op).Observe(time.Since(started).Seconds())
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	started := time.Now()
	value, err := s.next.Get(ctx, key)
	s.observe("get", started, err)
	return value, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, value []byte) error {
	started := time.Now()
	err := s.next.Put(ctx, key, value)
	s.observe("put", started, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	started := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", started, err)
	return err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
