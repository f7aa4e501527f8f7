package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pigeon-sms/pigeon/internal/registry"
)

// Recorder exports registry activity as Prometheus metrics.
type Recorder struct {
	operations *prometheus.CounterVec
	users      prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "registry",
			Name:      "operations_total",
			Help:      "Registry operations by outcome.",
		}, []string{"operation", "outcome"}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pigeon",
			Subsystem: "registry",
			Name:      "users",
			Help:      "Onboarded users as of the last committed mutation.",
		}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.users} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveOperation counts one operation under its outcome label.
func (r *Recorder) ObserveOperation(op string, err error) {
	r.operations.WithLabelValues(op, Outcome(err)).Inc()
}

// SetTotalUsers updates the users gauge.
func (r *Recorder) SetTotalUsers(n uint64) {
	r.users.Set(float64(n))
}

// Outcome maps an operation error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, registry.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, registry.ErrNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, registry.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, registry.ErrOverflow), errors.Is(err, registry.ErrUnderflow):
		return "arithmetic"
	case errors.Is(err, registry.ErrAllocation):
		return "allocation"
	case errors.Is(err, registry.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
