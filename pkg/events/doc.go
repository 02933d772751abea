/*
Package events defines the typed events carried on the message bus and the
room naming scheme used by the realtime gateway.

Three fixed broker channels exist, each with exactly one event type:

	channel         event type          client event     destination
	notifications   NotificationEvent   notification     every connection
	chat            ChatMessageEvent    chat-message     chat:{moduleId}
	conflicts       ConflictEvent       task-conflict    user:{userId}

Decode is the bridge boundary: it rejects anything that is not a JSON
object and validates only the fields that pick a room (moduleId, userId,
taskId) with go-playground/validator. Other fields may carry any type and the
original bytes are delivered to clients unchanged.

Parse and Encode are the producer side. They apply the full typed rules
(severity values, timestamps, list fields) before anything reaches the
broker.

Notifications are broadcast to all connections and filtered client side.
*/
package events
