// Package metrics provides Prometheus metrics for the order service
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()
var factory = promauto.With(registry)

var (
	OrdersPlaced = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "orders_placed_total",
		Help:      "Orders accepted and persisted",
	})

	OrdersRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "orders_rejected_total",
		Help:      "Commands rejected, by reason",
	}, []string{"reason"})

	OrdersCancelled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "orders_cancelled_total",
		Help:      "Cancel requests recorded",
	})

	OrdersFilled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "orders_filled_total",
		Help:      "Orders transitioned to FILLED by fill events",
	})

	ReservationRejections = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "reservation_rejections_total",
		Help:      "Reserve calls answered with a non-success code",
	})

	Compensations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "compensations_total",
		Help:      "Reservation releases attempted after persistence failure",
	})

	AuthFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "order_api",
		Name:      "auth_failures_total",
		Help:      "Calls rejected by the session gate",
	})
)

// Handler exposes the private registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
