package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
)

// MockSampleReader is a mock warehouse reader
type MockSampleReader struct {
	mock.Mock
}

func (m *MockSampleReader) List(ctx context.Context, filter domain.SampleFilter) ([]domain.Sample, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.Sample), args.Get(1).(int64), args.Error(2)
}

func exportPayload() *SampleExportPayload {
	return &SampleExportPayload{
		JobID:       uuid.New(),
		ShardID:     uuid.New(),
		SiteID:      uuid.New(),
		SiteOrdinal: 4,
		Sensor:      "landsat8-sr",
		Variable:    domain.VariableFAPAR,
		WindowStart: time.Date(2021, 6, 1, 6, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2022, 1, 1, 6, 0, 0, 0, time.UTC),
	}
}

func exportTask(t *testing.T, payload *SampleExportPayload) *asynq.Task {
	t.Helper()
	task, err := NewSampleExportTask(payload)
	require.NoError(t, err)
	return task
}

func warehouseRow(scene string, value float64) domain.Sample {
	return domain.Sample{
		SceneID:    scene,
		AcquiredAt: time.Date(2021, 6, 10, 17, 30, 0, 0, time.UTC),
		Longitude:  10.25,
		Latitude:   49.75,
		Band:       "fAPAR",
		Value:      value,
		QC:         1,
		Partition:  3,
	}
}

func TestExportWorker_ProcessSampleExportTask(t *testing.T) {
	t.Run("writes a csv object with one row per sample", func(t *testing.T) {
		samples := new(MockSampleReader)
		store := new(MockObjectPutter)
		w := NewExportWorker(zap.NewNop(), samples, store)
		payload := exportPayload()

		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.JobID == payload.JobID.String() &&
				f.SiteID == payload.SiteID.String() &&
				f.StartDate.Equal(payload.WindowStart) &&
				f.EndDate.Equal(payload.WindowEnd) &&
				f.Limit == exportPageSize
		})).Return([]domain.Sample{
			warehouseRow("s1", 0.5),
			warehouseRow("s1", 0.05),
			warehouseRow("s2", 0.75),
		}, int64(3), nil)

		var key string
		var data []byte
		store.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "text/csv").
			Run(func(args mock.Arguments) {
				key = args.Get(1).(string)
				data = args.Get(2).([]byte)
			}).
			Return(nil)

		err := w.ProcessSampleExportTask(context.Background(), exportTask(t, payload))
		require.NoError(t, err)

		// The name carries the last covered day of the half open window.
		assert.Equal(t, "jobs/"+payload.JobID.String()+"/landsat8-sr_fAPAR_4_20210601_20211231.csv", key)

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, exportHeader, records[0])
		assert.Equal(t, []string{
			"s1", "2021-06-10T17:30:00Z", "10.25", "49.75", "fAPAR", "0.5", "1", "3",
		}, records[1])
		assert.Equal(t, "0.75", records[3][5])
	})

	t.Run("pages through the warehouse", func(t *testing.T) {
		samples := new(MockSampleReader)
		store := new(MockObjectPutter)
		w := NewExportWorker(zap.NewNop(), samples, store)
		w.pageSize = 2
		payload := exportPayload()

		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.Offset == 0 && f.Limit == 2
		})).Return([]domain.Sample{
			warehouseRow("s1", 0.5),
			warehouseRow("s1", 0.05),
		}, int64(3), nil).Once()
		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.Offset == 2 && f.Limit == 2
		})).Return([]domain.Sample{
			warehouseRow("s2", 0.75),
		}, int64(3), nil).Once()

		var data []byte
		store.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "text/csv").
			Run(func(args mock.Arguments) {
				data = args.Get(2).([]byte)
			}).
			Return(nil)

		err := w.ProcessSampleExportTask(context.Background(), exportTask(t, payload))
		require.NoError(t, err)

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 4)
		samples.AssertNumberOfCalls(t, "List", 2)
	})

	t.Run("propagates warehouse read errors", func(t *testing.T) {
		samples := new(MockSampleReader)
		store := new(MockObjectPutter)
		w := NewExportWorker(zap.NewNop(), samples, store)

		samples.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("connection refused"))

		err := w.ProcessSampleExportTask(context.Background(), exportTask(t, exportPayload()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read samples")
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
