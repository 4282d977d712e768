// internal/workers/content/approve-topics/models.go
package approvetopics

import "content-workers/internal/generation"

// Input is usually the output of a review user task: the generated topics with their edited statuses.
type Input struct {
	Topics   []generation.GeneratedItem `json:"topics"`
	SaveToDB *bool                      `json:"save_to_db"`
}

type Output struct {
	ApprovedTopics []generation.GeneratedItem `json:"approved_topics"`
	ApprovedCount  int                        `json:"approved_count"`
	SkippedCount   int                        `json:"skipped_count"`
}
