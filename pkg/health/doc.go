/*
Package health probes the service's external dependencies.

A Monitor runs a set of Checkers on a fixed interval and reports each
dependency under its component name in the process health registry
(pkg/metrics), which backs /health, /ready and the gRPC health service.

Checkers:

  - RedisChecker issues PING against the broker
  - TCPChecker dials an address, used for the SMTP relay
  - FuncChecker wraps any func(ctx) error, used for the task store

A dependency starts healthy and is only marked unhealthy after Retries
consecutive failed probes; a single success restores it. Failures below the
threshold are reported as "degraded" but keep the component healthy.

The broker probe reports under "redis", separate from the bus bridge's own
"bus" component: the bridge tracks its subscription state, the probe tracks
plain reachability of the server.
*/
package health
