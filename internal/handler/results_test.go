package handler

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// MockJobGetter mocks the job lookup used by result endpoints
type MockJobGetter struct {
	mock.Mock
}

func (m *MockJobGetter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

// MockSampleReader mocks warehouse sample reads
type MockSampleReader struct {
	mock.Mock
}

func (m *MockSampleReader) List(ctx context.Context, filter domain.SampleFilter) ([]domain.Sample, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Sample), args.Get(1).(int64), args.Error(2)
}

// MockExportLister mocks the export object store
type MockExportLister struct {
	mock.Mock
}

func (m *MockExportLister) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockExportLister) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func newResultsTestApp(jobs *MockJobGetter, samples *MockSampleReader, exports *MockExportLister, pageSize int) *fiber.App {
	app := fiber.New()
	h := NewResultsHandler(jobs, samples, exports, zap.NewNop())
	h.pageSize = pageSize
	h.RegisterRoutes(app.Group("/api/v1"))
	return app
}

func TestResultsHandler_DownloadSamples(t *testing.T) {
	t.Run("streams a csv with one row per sample", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		job := &domain.Job{ID: jobID, Kind: domain.JobKindSampling, Status: domain.JobStatusCompleted}
		jobs.On("GetByID", mock.Anything, jobID).Return(job, nil)

		acquired := time.Date(2021, 6, 12, 10, 30, 0, 0, time.UTC)
		page1 := []domain.Sample{
			{SiteID: "1", SceneID: "S2A_0612", AcquiredAt: acquired, Longitude: 10.5, Latitude: 49.75, Band: "B4", Value: 0.042, QC: 0, Partition: 3},
			{SiteID: "1", SceneID: "S2A_0612", AcquiredAt: acquired, Longitude: 10.5, Latitude: 49.75, Band: "B8", Value: 0.31, QC: 0, Partition: 3},
		}
		page2 := []domain.Sample{
			{SiteID: "2", SceneID: "S2B_0617", AcquiredAt: acquired.AddDate(0, 0, 5), Longitude: 10.51, Latitude: 49.76, Band: "B4", Value: 0.05, QC: 1, Partition: 4},
		}
		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.JobID == jobID.String() && f.Limit == 2 && f.Offset == 0
		})).Return(page1, int64(3), nil).Once()
		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.JobID == jobID.String() && f.Limit == 2 && f.Offset == 2
		})).Return(page2, int64(3), nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/samples.csv", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get(fiber.HeaderContentType))
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), jobID.String()+"_samples.csv")

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, sampleCSVHeader, records[0])
		assert.Equal(t, []string{"1", "S2A_0612", "2021-06-12T10:30:00Z", "10.5", "49.75", "B4", "0.042", "0", "3"}, records[1])
		assert.Equal(t, "B8", records[2][5])
		assert.Equal(t, "2", records[3][0])

		jobs.AssertExpectations(t)
		samples.AssertExpectations(t)
	})

	t.Run("filters the download by band", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID}, nil)
		samples.On("List", mock.Anything, mock.MatchedBy(func(f domain.SampleFilter) bool {
			return f.Band == "B4"
		})).Return([]domain.Sample{}, int64(0), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/samples.csv?band=B4", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, sampleCSVHeader, records[0])

		samples.AssertExpectations(t)
	})

	t.Run("returns 404 before streaming when the job is missing", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		jobs.On("GetByID", mock.Anything, jobID).Return(nil, apperrors.NotFound("job"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/samples.csv", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		samples.AssertNotCalled(t, "List")
	})

	t.Run("rejects a malformed job id", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid/samples.csv", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		jobs.AssertNotCalled(t, "GetByID")
	})
}

func TestResultsHandler_ListExports(t *testing.T) {
	t.Run("lists export objects with links", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		prefix := "jobs/" + jobID.String() + "/"
		jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID}, nil)
		exports.On("ListKeys", mock.Anything, prefix).
			Return([]string{prefix + "site_0001.csv", prefix + "site_0002.csv"}, nil)
		exports.On("PresignedURL", mock.Anything, prefix+"site_0001.csv", downloadURLTTL).
			Return("https://minio.local/a?sig=1", nil)
		exports.On("PresignedURL", mock.Anything, prefix+"site_0002.csv", downloadURLTTL).
			Return("https://minio.local/b?sig=2", nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/exports", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		result := decodeBody[map[string][]ExportObject](t, resp)
		require.Len(t, result["items"], 2)
		assert.Equal(t, prefix+"site_0001.csv", result["items"][0].Key)
		assert.Equal(t, "https://minio.local/a?sig=1", result["items"][0].URL)

		exports.AssertExpectations(t)
	})

	t.Run("returns 500 when the store listing fails", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		jobs.On("GetByID", mock.Anything, jobID).Return(&domain.Job{ID: jobID}, nil)
		exports.On("ListKeys", mock.Anything, mock.Anything).
			Return(nil, apperrors.Backend("object store listing failed"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/exports", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("returns 404 when the job is missing", func(t *testing.T) {
		jobs := new(MockJobGetter)
		samples := new(MockSampleReader)
		exports := new(MockExportLister)
		app := newResultsTestApp(jobs, samples, exports, 2)

		jobID := uuid.New()
		jobs.On("GetByID", mock.Anything, jobID).Return(nil, apperrors.NotFound("job"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/exports", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		exports.AssertNotCalled(t, "ListKeys")
	})
}
