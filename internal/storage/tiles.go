package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/pkg/circuitbreaker"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
	"github.com/canopylabs/canopy/internal/raster"
)

// imagePayload is the gob shape of a stored tile. Scene metadata lives
// in the catalog, not in the payload; the catalog reattaches it after
// decode.
type imagePayload struct {
	Grid  raster.Grid
	Time  time.Time
	Props map[string]string
	Bands []*raster.Band
}

// EncodeImage serializes an image's grid, time, props and bands.
func EncodeImage(img *raster.Image) ([]byte, error) {
	var buf bytes.Buffer
	payload := imagePayload{
		Grid:  img.Grid,
		Time:  img.Time,
		Props: img.Props,
		Bands: img.Bands,
	}
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode tile payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage deserializes a stored tile back into an image.
func DecodeImage(data []byte) (*raster.Image, error) {
	var payload imagePayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode tile payload: %w", err)
	}

	img := raster.NewImage(payload.Grid, payload.Time)
	img.Bands = payload.Bands
	if payload.Props != nil {
		img.Props = payload.Props
	}
	return img, nil
}

// TileStore reads and writes scene band payloads in the object store.
// Reads run behind a circuit breaker so a degraded store sheds load
// instead of stalling every shard.
type TileStore struct {
	client  *minio.Client
	bucket  string
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewTileStore creates a tile store on the given bucket.
func NewTileStore(client *minio.Client, bucket string, logger *zap.Logger) *TileStore {
	return &TileStore{
		client:  client,
		bucket:  bucket,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("tile-store")),
		logger:  logger,
	}
}

// GetImage fetches and decodes one tile payload.
func (s *TileStore) GetImage(ctx context.Context, key string) (*raster.Image, error) {
	start := time.Now()
	img, err := circuitbreaker.ExecuteWithResult(s.breaker, ctx, func() (*raster.Image, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("get tile %s: %w", key, err)
		}
		defer obj.Close()

		data, err := io.ReadAll(obj)
		if err != nil {
			return nil, fmt.Errorf("read tile %s: %w", key, err)
		}
		return DecodeImage(data)
	})
	metrics.RecordTileFetch(time.Since(start), err)
	if err != nil {
		s.logger.Warn("tile fetch failed", zap.String("key", key), zap.Error(err))
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, apperrors.Backend("tile store unavailable").WithError(err)
		}
		return nil, err
	}
	return img, nil
}

// PutImage encodes and stores one tile payload.
func (s *TileStore) PutImage(ctx context.Context, key string, img *raster.Image) error {
	data, err := EncodeImage(img)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("put tile %s: %w", key, err)
	}
	return nil
}
