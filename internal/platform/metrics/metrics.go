package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersCreated        prometheus.Counter
	ProgramsRegistered  prometheus.Counter
	ReservationsCreated prometheus.Counter
	VCsIssued           *prometheus.CounterVec
	VCStatusUpdates     *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "onpaku_users_created_total",
			Help: "Total number of users created in the system",
		}),
		ProgramsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "onpaku_programs_registered_total",
			Help: "Total number of programs registered",
		}),
		ReservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "onpaku_reservations_created_total",
			Help: "Total number of reservations created",
		}),
		VCsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onpaku_vcs_issued_total",
			Help: "Total number of verifiable credential records announced, by type",
		}, []string{"type"}),
		VCStatusUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onpaku_vc_status_updates_total",
			Help: "Total number of VC status updates, by resulting status",
		}, []string{"status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onpaku_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// IncrementUsersCreated increments the users created counter by 1.
func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

// IncrementProgramsRegistered increments the programs registered counter by 1.
func (m *Metrics) IncrementProgramsRegistered() {
	if m == nil {
		return
	}
	m.ProgramsRegistered.Inc()
}

// IncrementReservationsCreated increments the reservations created counter by 1.
func (m *Metrics) IncrementReservationsCreated() {
	if m == nil {
		return
	}
	m.ReservationsCreated.Inc()
}

// IncrementVCsIssued increments the issued counter for the given VC type.
func (m *Metrics) IncrementVCsIssued(vcType string) {
	if m == nil {
		return
	}
	m.VCsIssued.WithLabelValues(vcType).Inc()
}

// IncrementVCStatusUpdates increments the status update counter for status.
func (m *Metrics) IncrementVCStatusUpdates(status string) {
	if m == nil {
		return
	}
	m.VCStatusUpdates.WithLabelValues(status).Inc()
}

// ObserveRequest records one request latency sample.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
