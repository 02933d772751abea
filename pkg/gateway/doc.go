/*
Package gateway is the realtime side of mmrt: it holds client WebSocket
connections, tracks which rooms each connection joined and fans events out
to them.

# Rooms

A room is a named delivery group. Two shapes are accepted:

	chat:{moduleId}   chat messages of a module
	user:{userId}     task conflict notifications of a user

Membership lives only in process memory. It starts empty on connect, changes
with subscribe/unsubscribe and disappears on disconnect; clients re-subscribe
after reconnecting.

# Wire protocol

Clients send JSON text frames:

	{"type":"subscribe","rooms":["chat:m1","user:u1"]}
	{"type":"unsubscribe","rooms":["chat:m1"]}
	{"type":"ping"}

and receive:

	{"event":"chat-message","payload":{...}}
	{"event":"task-conflict","payload":{...}}
	{"event":"notification","payload":{...}}
	{"event":"pong"}

Malformed frames, non-array rooms and unknown room shapes are ignored
without a reply.

# Delivery

Deliver queues a frame for each member of one room, Broadcast for every
connection. Each connection owns a bounded send queue drained by a single
writer goroutine; when the queue is full the frame is dropped for that
connection only. Delivery is at most once and there is no replay for
connections that were offline.
*/
package gateway
