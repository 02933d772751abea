/*
Package types defines the persisted records mmrt reads and patches.

Tasks, notifications and users are owned by the CRUD layer of the tracker.
This service treats them as an opaque store: it pages through tasks to
detect schedule conflicts, patches the conflict flag back, and reads unread
critical notifications for the email digest.

# Conflict fields

Task.HasConflict and Task.ConflictsWith are derived values. They are
recomputed by the conflict detector on every run and only written when they
change.
*/
package types
