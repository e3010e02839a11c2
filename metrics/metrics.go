package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for FetchTotal.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_inbox_fetch_total",
		Help: "Upstream page fetches by direction and outcome.",
	}, []string{"direction", "outcome"})

	MessagesMerged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_inbox_messages_merged_total",
		Help: "Messages added to conversation buffers.",
	}, []string{"direction"})

	DuplicatesSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_inbox_duplicates_suppressed_total",
		Help: "Fetched messages dropped because their id was already buffered.",
	}, []string{"direction"})
)

func init() {
	prometheus.MustRegister(FetchTotal, MessagesMerged, DuplicatesSuppressed)
}

// RegisterInbox exposes registry gauges. Calling it twice is a no-op.
func RegisterInbox(conversations, watched func() int) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "crm_inbox_conversations",
			Help: "Conversations held in the registry.",
		}, func() float64 { return float64(conversations()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "crm_inbox_watched_conversations",
			Help: "Conversations with an active polling reconciler.",
		}, func() float64 { return float64(watched()) }),
	}

	for _, g := range gauges {
		if err := prometheus.Register(g); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func Handler() http.Handler {
	return promhttp.Handler()
}
