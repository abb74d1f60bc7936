// Package handler serves the reconciler's local, read-only HTTP views.
//
// Routes:
//
//	GET /health             liveness
//	GET /events             live event stream (Server-Sent Events)
//	GET /api/events?limit=N recent journaled events, newest first
//	GET /api/stats          event counts by type and by observer
//	GET /api/status         reconciler state and totals
//	GET /api/known          Known State ordered by ip
//	GET /api/history/{ip}   ledger history for one ip (embedded ledger only)
package handler
