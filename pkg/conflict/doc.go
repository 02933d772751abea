/*
Package conflict detects scheduling conflicts between tasks.

Two active tasks conflict when they share an assignee and their windows
overlap (startA < endB && startB < endA). Each pass pages through the task
collection, sweeps each assignee's windows in start order, writes the
hasConflict flag and conflictsWith list back onto every task whose state
changed, and publishes a task-conflict event to each assignee when a flag
flips in either direction. Flags left on tasks that closed or lost their
dates are cleared.

The Scheduler runs a pass at startup and then every 30 minutes by default.
*/
package conflict
