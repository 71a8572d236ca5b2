// internal/domain/models/merge.go
package models

// MergeResult reports the outcome of one account-merge attempt. It is a
// transient value, never persisted; a retried merge produces a fresh one.
type MergeResult struct {
	Success           bool
	TournamentsMerged int
	Err               error
}
