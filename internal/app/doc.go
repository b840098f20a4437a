// Package app contains the vote accounting service: quota enforcement,
// the paired ledger/budget mutation, read-side aggregation and ordering,
// and the best-effort change notification after each commit.
package app
