package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersConfirmedTotal,
		ordersCancelledTotal,
		orderPriceRUB,
		orderNotificationsTotal,
		orderNotificationAttemptsTotal,
	)
}

var (
	ordersConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_confirmed_total",
			Help: "Orders confirmed by customers, by shipping method.",
		},
		[]string{"shipping"},
	)

	ordersCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders declined at the confirmation step or abandoned with /cancel.",
		},
	)

	orderPriceRUB = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_price_rub",
			Help:    "Converted price of confirmed orders in RUB.",
			Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000, 250000},
		},
	)

	orderNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Admin notifications about confirmed orders, by result.",
		},
		[]string{"status"}, // 'sent', 'failed', 'dropped'
	)

	orderNotificationAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_notification_attempts_total",
			Help: "Individual delivery attempts, including retries.",
		},
	)
)

func IncOrderConfirmed(shipping string, priceRUB float64) {
	ordersConfirmedTotal.WithLabelValues(norm(shipping)).Inc()
	orderPriceRUB.Observe(priceRUB)
}

func IncOrderCancelled() {
	ordersCancelledTotal.Inc()
}

func IncOrderNotification(status string) {
	orderNotificationsTotal.WithLabelValues(norm(status)).Inc()
}

func IncNotificationAttempt() {
	orderNotificationAttemptsTotal.Inc()
}
