/*
Package log provides structured logging for mmrt using zerolog.

The package wraps a single global zerolog.Logger that every other package
derives child loggers from. Components attach their name once and then add
per-event fields such as the connection, room, channel, task or user.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Create a component logger:

	gwLog := log.WithComponent("gateway")
	gwLog.Info().
		Str("conn_id", id).
		Strs("rooms", rooms).
		Msg("connection subscribed")

Console output is used when JSONOutput is false, which is convenient for
local development:

	10:30AM INF connection subscribed component=gateway conn_id=3f2a... rooms=["chat:m1"]

# Conventions

  - component: gateway, bus, publisher, conflict, digest, api, jobs
  - conn_id: realtime connection identifier
  - channel: broker channel (notifications, chat, conflicts)
  - room: delivery room (chat:{moduleId}, user:{userId})
  - task_id, user_id: domain identifiers

Errors are attached with Err(err) rather than formatted into the message so
they stay machine readable.
*/
package log
