// Package mailer sends the plain-text emails produced by the digest job.
package mailer
