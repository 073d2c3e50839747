package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a submitted sampling or mapping job
type Job struct {
	ID       uuid.UUID `json:"id"`
	Kind     JobKind   `json:"kind"`
	Status   JobStatus `json:"status"`
	Sensor   string    `json:"sensor"`
	Variable Variable  `json:"variable"`
	Params   JobParams `json:"params"`

	ShardsTotal  int    `json:"shardsTotal"`
	ShardsDone   int    `json:"shardsDone"`
	ShardsFailed int    `json:"shardsFailed"`
	Error        string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// JobParams holds the job knobs serialized alongside the job row
type JobParams struct {
	// SiteFrom and SiteTo bound the site ordinals the job covers. Zero
	// values select the full registered range.
	SiteFrom int `json:"siteFrom,omitempty"`
	SiteTo   int `json:"siteTo,omitempty"`

	// StartDate and EndDate fix one explicit window for every site,
	// overriding per-site observation windows. BufferDays is ignored
	// when both are set.
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`

	// BufferDays widens each site observation window on both ends.
	BufferDays int       `json:"bufferDays,omitempty"`
	SplitUnit  SplitUnit `json:"splitUnit,omitempty"`

	MaxCloudCover float64 `json:"maxCloudCover,omitempty"`
	InputScale    float64 `json:"inputScale,omitempty"`
	OutputScale   float64 `json:"outputScale,omitempty"`
	StartMonth    int     `json:"startMonth,omitempty"`
	EndMonth      int     `json:"endMonth,omitempty"`

	Destination ExportDestination `json:"destination"`

	Sampling *SamplingParams `json:"sampling,omitempty"`
}

// SamplingParams controls how product pixels are drawn for sampling jobs
type SamplingParams struct {
	// NumPixels draws an absolute pixel count. Takes precedence over
	// Factor when both are set.
	NumPixels int64 `json:"numPixels,omitempty"`
	// Factor draws a fraction of the valid pixels.
	Factor float64 `json:"factor,omitempty"`
	// Seed makes the draw reproducible. Zero is a fixed seed, not time.
	Seed int64 `json:"seed"`
	// DropInvalid skips pixels masked in any sampled band.
	DropInvalid bool `json:"dropInvalid"`
}

// JobFilter narrows job listings
type JobFilter struct {
	Kind   JobKind
	Status JobStatus
	Sensor string
}

// DateRange is one shard's half-open sampling window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Progress returns the fraction of shards finished, in [0, 1]
func (j *Job) Progress() float64 {
	if j.ShardsTotal == 0 {
		return 0
	}
	return float64(j.ShardsDone+j.ShardsFailed) / float64(j.ShardsTotal)
}
