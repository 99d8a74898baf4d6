package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cart writes by outcome: ok, approval_required, approval_pending,
	// session_mismatch, table_closed, invalid, error.
	CartSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecart_submissions_total",
			Help: "Cart replacement writes by outcome",
		},
		[]string{"outcome"},
	)

	ApprovalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablecart_approval_requests_total",
			Help: "Approval requests by terminal or initial state",
		},
		[]string{"status"},
	)

	SessionsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablecart_sessions_issued_total",
			Help: "Session tokens minted",
		},
	)

	OrdersPlacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablecart_orders_placed_total",
			Help: "Orders moved from pending to processed",
		},
	)

	OrdersClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablecart_orders_closed_total",
			Help: "Orders closed by staff or superseded by a new seating",
		},
	)

	OrderTotalAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablecart_placed_order_total",
			Help:    "Total of orders at placement",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	UpdateRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablecart_update_retries_total",
			Help: "Optimistic order updates retried after a version conflict",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablecart_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
