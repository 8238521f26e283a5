// Package metrics exposes prometheus collectors for the presence and
// delivery paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is an injected collector set; the server owns one instance.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	MessagesSent    prometheus.Counter
	DeliveredLive   prometheus.Counter
	BacklogFlushed  prometheus.Counter
	AutoResponses   prometheus.Counter
	EventsRejected  *prometheus.CounterVec
	IdleDemotions   prometheus.Counter
	PresenceFanouts prometheus.Counter
}

// New registers the roost collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "roost",
			Name:      "active_sessions",
			Help:      "Number of live socket sessions.",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "roost",
			Name:      "online_users",
			Help:      "Number of distinct reachable users.",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "messages_sent_total",
			Help:      "Messages accepted and persisted.",
		}),
		DeliveredLive: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "messages_delivered_live_total",
			Help:      "Messages delivered to a reachable recipient at send time.",
		}),
		BacklogFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "backlog_messages_flushed_total",
			Help:      "Messages redelivered from the offline backlog.",
		}),
		AutoResponses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "auto_responses_total",
			Help:      "Synthetic away auto-response messages generated.",
		}),
		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "events_rejected_total",
			Help:      "Inbound events rejected, by error code.",
		}, []string{"code"}),
		IdleDemotions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "idle_demotions_total",
			Help:      "Users auto-demoted to away by the idle monitor.",
		}),
		PresenceFanouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roost",
			Name:      "presence_fanouts_total",
			Help:      "Presence notifications fanned out to buddies.",
		}),
	}
}

// NewNop returns collectors bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
