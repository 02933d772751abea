/*
Package bus connects the process to the Redis message broker.

A Bridge owns exactly one subscription covering the notifications, chat
and conflicts channels. Each message is decoded into its typed event and
routed: notifications go to every connection, chat messages to the
module's chat room, conflict events to the assignee's personal room.
Invalid messages are dropped with a log line and a counter.

When the subscription drops the bridge moves to StateReconnecting and
resubscribes with exponential backoff. After MaxReconnectAttempts
consecutive failures it moves to StateFailed and reports the bus
component unhealthy, which fails readiness. Messages published while
the bridge is not subscribed are lost.

Publisher is the producer side: it validates an event, encodes it and
PUBLISHes it on the event's channel.
*/
package bus
