/*
Package api implements the process's HTTP and gRPC surfaces.

# HTTP

One ServeMux carries everything:

	GET  /ws                              websocket gateway (when hosted)
	GET  /health                          component health, 503 if any is down
	GET  /ready                           readiness of store, bus and gateway
	GET  /live                            liveness
	GET  /metrics                         Prometheus metrics
	POST /api/v1/notifications            publish a notification
	POST /api/v1/chat/{moduleId}          publish a chat message to a module room
	POST /api/v1/tasks/{taskId}/assign    replace assignees and notify new ones

The POST endpoints exist for collaborators that cannot reach the broker
themselves. Notifications addressed to a user are stored before they are
published so the critical digest can pick them up later. Errors are
returned as {"error": "..."}: 400 for invalid input, 404 for unknown
tasks, 503 when the broker rejects the publish.

# gRPC

GRPCServer serves only grpc.health.v1.Health. Each of the store, bus and
gateway components is reported as its own service name, and the empty
service name reports overall readiness. Status is copied from the metrics
health registry on a short interval.
*/
package api
