// Package kvmetrics instruments any kv.Store with Prometheus metrics.
package kvmetrics

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Operation label values.
const (
	OpGet    = "get"
	OpList   = "list"
	OpCommit = "commit"
)

// Metrics holds the collectors shared by every wrapped store.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	listed     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kv",
				Name:      "operations_total",
				Help:      "Total number of kv operations by backend, operation and result.",
			},
			[]string{"backend", "op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kv",
				Name:      "operation_duration_seconds",
				Help:      "Duration of kv operations. List is measured until iteration stops.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"backend", "op"},
		),
		listed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kv",
				Name:      "listed_entries_total",
				Help:      "Total number of entries yielded by List.",
			},
			[]string{"backend"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.listed)
	}
	return m
}

// Wrap returns a kv.Store that records every call made to next under the
// given backend label.
func (m *Metrics) Wrap(next kv.Store, backend string) *Store {
	return &Store{next: next, metrics: m, backend: backend}
}

// Store is an instrumented kv.Store.
type Store struct {
	next    kv.Store
	metrics *Metrics
	backend string
}

// Unwrap returns the instrumented store.
func (s *Store) Unwrap() kv.Store {
	return s.next
}

func (s *Store) Get(ctx context.Context, key kv.Key) (*kv.Entry, error) {
	start := time.Now()
	entry, err := s.next.Get(ctx, key)
	s.observe(OpGet, start, err)
	return entry, err
}

func (s *Store) List(ctx context.Context, prefix kv.Key) iter.Seq2[*kv.Entry, error] {
	return func(yield func(*kv.Entry, error) bool) {
		start := time.Now()
		var (
			listErr error
			count   int
		)
		defer func() {
			s.metrics.listed.WithLabelValues(s.backend).Add(float64(count))
			s.observe(OpList, start, listErr)
		}()

		for entry, err := range s.next.List(ctx, prefix) {
			if err != nil {
				listErr = err
			} else {
				count++
			}
			if !yield(entry, err) {
				return
			}
		}
	}
}

func (s *Store) Commit(ctx context.Context, op *kv.Atomic) error {
	start := time.Now()
	err := s.next.Commit(ctx, op)
	s.observe(OpCommit, start, err)
	return err
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.duration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	s.metrics.operations.WithLabelValues(s.backend, op, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, kv.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, kv.ErrConflict):
		return ResultConflict
	default:
		return ResultError
	}
}
