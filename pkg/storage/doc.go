/*
Package storage provides BoltDB-backed persistence for the records mmrt
touches: tasks, notifications and users.

In production the tracker's document store is the source of truth and this
package is the adapter the realtime service reads through. The bundled
BoltStore keeps everything in one embedded file (<dataDir>/mmrt.db) so the
service can run standalone and in tests.

# Buckets

	tasks          task ID -> JSON Task
	notifications  notification ID -> JSON Notification
	users          user ID -> JSON User

# Bounded scans

ListTasksPage walks the tasks bucket in key order, limit records at a time,
each page in its own read transaction. The conflict detector pages through
the collection instead of loading it in one transaction so a large scan
never holds the database for long. A record that fails to decode is
reported in TaskPage.Corrupt and the page carries on.

	page, err := store.ListTasksPage("", 200)
	for err == nil {
		process(page.Tasks)
		if page.Next == "" {
			break
		}
		page, err = store.ListTasksPage(page.Next, 200)
	}

# Errors

Lookups of missing records return an error wrapping types.ErrNotFound.
*/
package storage
