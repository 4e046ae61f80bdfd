// Package model defines the data structures shared across layers.
package model

import "time"

// Execution is the recorded outcome of one code execution: the operational
// audit trail of the service. Source and stdin are deliberately not stored;
// only the metadata needed to answer "what ran, how did it end, how long did
// it take".
type Execution struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	Kind       string    `json:"kind"`
	ExitCode   int       `json:"exitCode"`
	DurationMs int64     `json:"durationMs"`
	Truncated  bool      `json:"truncated"`
	CreatedAt  time.Time `json:"createdAt"`
}
