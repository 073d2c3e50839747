package domain

import "time"

// Sample represents one sampled pixel band value bound for the warehouse
type Sample struct {
	ID         string    `json:"id" ch:"id"`
	JobID      string    `json:"jobId" ch:"job_id"`
	ShardID    string    `json:"shardId" ch:"shard_id"`
	SiteID     string    `json:"siteId" ch:"site_id"`
	SceneID    string    `json:"sceneId" ch:"scene_id"`
	Sensor     string    `json:"sensor" ch:"sensor"`
	Variable   string    `json:"variable" ch:"variable"`
	Band       string    `json:"band" ch:"band"`
	AcquiredAt time.Time `json:"acquiredAt" ch:"acquired_at"`
	Longitude  float64   `json:"longitude" ch:"longitude"`
	Latitude   float64   `json:"latitude" ch:"latitude"`
	Value      float64   `json:"value" ch:"value"`
	QC         uint8     `json:"qc" ch:"qc"`
	Partition  uint8     `json:"partition" ch:"partition"`
	CreatedAt  time.Time `json:"createdAt" ch:"created_at"`
}

// SampleFilter narrows warehouse sample queries
type SampleFilter struct {
	JobID     string
	SiteID    string
	Band      string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}
