package metrics

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	// Duracion de requests HTTP por metodo, ruta y status.
	RequestDuration *prometheus.HistogramVec
	// Dias efectivamente agregados o quitados de blocked dates.
	BlockedDaysChanged *prometheus.CounterVec
	// Operaciones de reconciliacion que no requirieron escritura.
	BlockedDatesNoop *prometheus.CounterVec
	// Duracion de queries por nombre y resultado.
	DBQueryDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds.",
		},
			[]string{"method", "route", "status"},
		),
		BlockedDaysChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocked_days_changed_total",
			Help: "Number of calendar days added to or removed from blocked dates.",
		},
			[]string{"op"},
		),
		BlockedDatesNoop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blocked_dates_noop_total",
			Help: "Blocked date reconciliations that required no write.",
		},
			[]string{"op"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
			[]string{"query", "status"},
		),
	}
	reg.MustRegister(m.RequestDuration, m.BlockedDaysChanged, m.BlockedDatesNoop, m.DBQueryDuration)
	return m
}

// ObserveDB registra duracion y resultado de una query. Acepta receptor nil.
func (m *Metrics) ObserveDB(query string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
		} else {
			status = "error"
		}
	}
	m.DBQueryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}

// ObserveBlockedDates registra el resultado de una reconciliacion.
func (m *Metrics) ObserveBlockedDates(op string, changed int) {
	if m == nil {
		return
	}
	if changed == 0 {
		m.BlockedDatesNoop.WithLabelValues(op).Inc()
		return
	}
	m.BlockedDaysChanged.WithLabelValues(op).Add(float64(changed))
}
