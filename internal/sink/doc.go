// Package sink delivers reconciliation events.
//
// The reconciler posts each emitted event to one Sink, usually a Multi
// combining the process log, the dashboard (HTTP), the sqlite event journal
// and the live SSE hub. Sinks never affect reconciler state.
package sink
