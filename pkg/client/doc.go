/*
Package client is a Go client for the realtime gateway.

It holds one websocket connection, exposes received frames on a channel,
and remembers the rooms the caller joined. The gateway keeps no membership
across reconnects, so after every reconnect the client sends a single
subscribe message listing all remembered rooms before reading.

	c := client.New(client.Config{URL: "ws://localhost:8080/ws"})
	_ = c.Subscribe("user:u1", "chat:M1")
	go c.Run(ctx)
	for evt := range c.Events() {
		fmt.Println(evt.Name, string(evt.Payload))
	}
*/
package client
