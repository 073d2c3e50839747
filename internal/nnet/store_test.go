package nnet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
)

type fakeLister struct {
	rows  []domain.NetworkAsset
	err   error
	calls int
}

func (f *fakeLister) ListBySensorVariable(_ context.Context, _ string, _ domain.Variable) ([]domain.NetworkAsset, error) {
	f.calls++
	return f.rows, f.err
}

func TestStoreSourceBuildsAndCaches(t *testing.T) {
	lister := &fakeLister{rows: []domain.NetworkAsset{
		asset(domain.NetworkKindEstimate, 3),
		asset(domain.NetworkKindEstimate, 5),
		asset(domain.NetworkKindUncertainty, 3),
		asset(domain.NetworkKindUncertainty, 5),
	}}
	src := NewStoreSource(lister)

	set, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, set.Estimate.Classes())
	assert.Equal(t, []int{3, 5}, set.Uncertainty.Classes())

	again, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	require.NoError(t, err)
	assert.Same(t, set, again)
	assert.Equal(t, 1, lister.calls)
}

func TestStoreSourceNoRows(t *testing.T) {
	src := NewStoreSource(&fakeLister{})

	_, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no networks stored")
}

func TestStoreSourceMissingUncertainty(t *testing.T) {
	src := NewStoreSource(&fakeLister{rows: []domain.NetworkAsset{
		asset(domain.NetworkKindEstimate, 3),
	}})

	_, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uncertainty bank")
}

func TestStoreSourceUnknownKind(t *testing.T) {
	stray := asset(domain.NetworkKindEstimate, 3)
	stray.Kind = "calibration"
	src := NewStoreSource(&fakeLister{rows: []domain.NetworkAsset{stray}})

	_, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestStoreSourceListerError(t *testing.T) {
	src := NewStoreSource(&fakeLister{err: assert.AnError})

	_, err := src.BankSet(context.Background(), "sentinel2-sr", domain.VariableLAI)
	assert.ErrorIs(t, err, assert.AnError)
}
