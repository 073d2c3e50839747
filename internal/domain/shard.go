package domain

import (
	"time"

	"github.com/google/uuid"
)

// Shard represents one site and date window slice of a job
type Shard struct {
	ID          uuid.UUID   `json:"id"`
	JobID       uuid.UUID   `json:"jobId"`
	SiteID      uuid.UUID   `json:"siteId"`
	WindowStart time.Time   `json:"windowStart"`
	WindowEnd   time.Time   `json:"windowEnd"`
	Status      ShardStatus `json:"status"`

	// SceneCount and SampleCount record what the shard produced.
	SceneCount  int    `json:"sceneCount"`
	SampleCount int    `json:"sampleCount"`
	Error       string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
