// Package telemetry holds the Prometheus metrics of the connection backend.
//
// Metrics are registered against the default registry and exposed by the
// metrics listener started in cmd/server:
//
//	GET http://<host>:<server.metrics_port>/metrics
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsCreatedTotal counts created connections by initiating side.
	ConnectionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_created_total",
			Help: "Total number of connections created, by initiating side",
		},
		[]string{"side"},
	)

	// ConnectionTransitionsTotal counts role changes applied to a connection.
	// Idempotent re-selections are not counted.
	ConnectionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_transitions_total",
			Help: "Total number of connection role transitions",
		},
		[]string{"side", "from", "to"},
	)

	ConnectionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_conflicts_total",
			Help: "Total number of rejected duplicate connection creations",
		},
	)

	ConnectionIneligibleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_ineligible_total",
			Help: "Total number of role selections rejected by the eligibility checker",
		},
		[]string{"reason"},
	)

	// RoleAssignmentsTotal counts profile membership changes made by the effector.
	RoleAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_role_assignments_total",
			Help: "Total number of profile role membership changes",
		},
		[]string{"role"},
	)

	NotificationsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Total number of notifications written to the outbox",
		},
		[]string{"kind"},
	)

	NotificationsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of outbox delivery attempts, by result",
		},
		[]string{"status"},
	)

	TxRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_tx_retries_total",
			Help: "Total number of database transactions retried after serialization failure or deadlock",
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
