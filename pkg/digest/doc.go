// Package digest emails users a summary of their unread high and critical
// notifications, at most once per notification.
package digest
