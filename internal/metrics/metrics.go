package metrics

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks nomination session activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	Nominations    *prometheus.CounterVec
	Submissions    *prometheus.CounterVec
	SubmitDuration prometheus.Histogram
	Alerts         *prometheus.CounterVec
	Sessions       prometheus.Gauge
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppies_searches_total",
			Help: "Movie searches by outcome (ok, empty, error, stale)",
		}, []string{"result"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoppies_search_duration_seconds",
			Help:    "Duration of calls to the search service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Nominations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppies_nomination_changes_total",
			Help: "Nomination set mutations by operation (add, remove)",
		}, []string{"op"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppies_submissions_total",
			Help: "Submissions by outcome (ok, error)",
		}, []string{"result"}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoppies_submit_duration_seconds",
			Help:    "Duration of calls to the submission service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shoppies_alerts_total",
			Help: "Alerts shown to users by kind",
		}, []string{"kind"}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "shoppies_sessions",
			Help: "Sessions currently held in memory",
		}),
	}
}

func (m *Metrics) ObserveSearch(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(result).Inc()
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncNomination(op string) {
	if m == nil {
		return
	}
	m.Nominations.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveSubmit(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncAlert(kind string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// SubmissionCounter reports how many submissions the local store holds.
type SubmissionCounter interface {
	CountSubmissions(ctx context.Context) (int64, error)
}

// RegisterStoredSubmissions exposes the local submission count, read at
// scrape time. A failed count reports NaN.
func RegisterStoredSubmissions(reg prometheus.Registerer, c SubmissionCounter) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "shoppies_stored_submissions",
		Help: "Submissions held in the local document store",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := c.CountSubmissions(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	})
}
