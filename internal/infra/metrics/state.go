package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(conversationStatesExpired) }

var conversationStatesExpired = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "conversation_states_expired_total",
		Help: "In-memory conversation states removed by the sweeper after STATE_TTL.",
	},
)

func AddStatesExpired(n int) {
	if n > 0 {
		conversationStatesExpired.Add(float64(n))
	}
}
