package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
)

// exportPageSize bounds one warehouse read while building a CSV.
const exportPageSize = 10000

// SampleReader pages sample rows out of the warehouse.
type SampleReader interface {
	List(ctx context.Context, filter domain.SampleFilter) ([]domain.Sample, int64, error)
}

// ExportWorker turns a shard's warehouse rows into a CSV object in the
// export bucket.
type ExportWorker struct {
	logger   *zap.Logger
	samples  SampleReader
	store    ObjectPutter
	pageSize int
}

// NewExportWorker creates a new export worker
func NewExportWorker(logger *zap.Logger, samples SampleReader, store ObjectPutter) *ExportWorker {
	return &ExportWorker{
		logger:   logger,
		samples:  samples,
		store:    store,
		pageSize: exportPageSize,
	}
}

var exportHeader = []string{
	"scene_id", "acquired_at", "longitude", "latitude",
	"band", "value", "qc", "partition",
}

// ProcessSampleExportTask processes a sample export task
func (w *ExportWorker) ProcessSampleExportTask(ctx context.Context, t *asynq.Task) error {
	var payload SampleExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal sample export payload: %w", err)
	}

	w.logger.Info("processing sample export",
		zap.String("job_id", payload.JobID.String()),
		zap.String("shard_id", payload.ShardID.String()))

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	rows := 0
	for offset := 0; ; offset += w.pageSize {
		page, _, err := w.samples.List(ctx, domain.SampleFilter{
			JobID:     payload.JobID.String(),
			SiteID:    payload.SiteID.String(),
			StartDate: payload.WindowStart,
			EndDate:   payload.WindowEnd,
			Limit:     w.pageSize,
			Offset:    offset,
		})
		if err != nil {
			return fmt.Errorf("failed to read samples: %w", err)
		}
		for _, s := range page {
			if err := cw.Write(sampleRecord(s)); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		rows += len(page)
		if len(page) < w.pageSize {
			break
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	// WindowEnd is exclusive; the object name carries the last covered day.
	name := domain.ExportName(payload.Sensor, payload.Variable, payload.SiteOrdinal,
		payload.WindowStart, payload.WindowEnd.AddDate(0, 0, -1))
	key := fmt.Sprintf("jobs/%s/%s.csv", payload.JobID, name)

	if err := w.store.Put(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		metrics.RecordExport(string(domain.DestinationBucket), string(domain.ShardStatusFailed))
		return fmt.Errorf("failed to upload export: %w", err)
	}
	metrics.RecordExport(string(domain.DestinationBucket), string(domain.ShardStatusSucceeded))

	w.logger.Info("sample export completed",
		zap.String("key", key),
		zap.Int("rows", rows),
		zap.Int("bytes", buf.Len()))
	return nil
}

func sampleRecord(s domain.Sample) []string {
	return []string{
		s.SceneID,
		s.AcquiredAt.UTC().Format(time.RFC3339),
		strconv.FormatFloat(s.Longitude, 'f', -1, 64),
		strconv.FormatFloat(s.Latitude, 'f', -1, 64),
		s.Band,
		strconv.FormatFloat(s.Value, 'f', -1, 64),
		strconv.Itoa(int(s.QC)),
		strconv.Itoa(int(s.Partition)),
	}
}
