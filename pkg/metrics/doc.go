/*
Package metrics exposes Prometheus metrics and the process health registry.

Metrics are registered on the default registry in init and served by
Handler() on /metrics. Families:

	mmrt_gateway_connections             open realtime connections
	mmrt_gateway_rooms                   rooms with at least one member
	mmrt_gateway_deliveries_total        frames queued, by event
	mmrt_gateway_dropped_total           frames dropped, by reason
	mmrt_gateway_control_messages_total  subscribe/unsubscribe/ping, by result
	mmrt_bus_messages_total              broker messages received, by channel
	mmrt_bus_messages_dropped_total      undecodable broker messages
	mmrt_bus_state                       bridge state machine
	mmrt_bus_reconnect_attempts_total    reconnect attempts, by result
	mmrt_publish_total                   publisher results, by channel
	mmrt_job_runs_total                  scheduled job runs, by result
	mmrt_job_duration_seconds            scheduled job duration
	mmrt_conflict_transitions_total      conflict flag transitions
	mmrt_digest_emails_total             digest emails, by result

The health registry tracks named components (store, bus, gateway). /health
reports every registered component; /ready requires the critical ones to be
registered and healthy. The gRPC health service reads the same registry.
*/
package metrics
