package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Export represents one delivered result object or table load
type Export struct {
	ID          uuid.UUID         `json:"id"`
	JobID       uuid.UUID         `json:"jobId"`
	ShardID     uuid.UUID         `json:"shardId"`
	Destination ExportDestination `json:"destination"`
	Name        string            `json:"name"`
	ObjectKey   string            `json:"objectKey,omitempty"`
	RowCount    int64             `json:"rowCount"`
	SizeBytes   int64             `json:"sizeBytes"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// ExportName builds the canonical result name for one site window
func ExportName(sensor string, variable Variable, siteOrdinal int, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%s_%s",
		sensor, variable, siteOrdinal,
		start.Format("20060102"), end.Format("20060102"))
}
