//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	MustRegister()
	MustRegister() // second call is a no-op

	before := counterValue(t, ordersConfirmedTotal.WithLabelValues("air"))
	IncOrderConfirmed(" AIR ", 13000)
	if got := counterValue(t, ordersConfirmedTotal.WithLabelValues("air")); got != before+1 {
		t.Errorf("orders_confirmed_total{shipping=air}: wanted %v, got %v", before+1, got)
	}

	IncTelegramCommand("/Start")
	if got := counterValue(t, telegramCommandsReceivedTotal.WithLabelValues("/start")); got < 1 {
		t.Errorf("command label should be normalized, got %v", got)
	}

	IncOrderNotification("failed")
	if got := counterValue(t, orderNotificationsTotal.WithLabelValues("failed")); got < 1 {
		t.Errorf("order_notifications_total{status=failed} not incremented")
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestGauges(t *testing.T) {
	t.Run("should report pool stats by state", func(t *testing.T) {
		SetDBPoolStats(4, 3, 1, 10)
		if got := gaugeValue(t, dbPoolConns.WithLabelValues("in_use")); got != 1 {
			t.Errorf("in_use: wanted 1, got %v", got)
		}
		if got := gaugeValue(t, dbPoolConns.WithLabelValues("max")); got != 10 {
			t.Errorf("max: wanted 10, got %v", got)
		}
	})

	t.Run("should count expired states", func(t *testing.T) {
		before := counterValue(t, conversationStatesExpired)
		AddStatesExpired(3)
		AddStatesExpired(0)
		if got := counterValue(t, conversationStatesExpired); got != before+3 {
			t.Errorf("wanted %v, got %v", before+3, got)
		}
	})
}
