package nnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/canopylabs/canopy/internal/domain"
)

// AssetLister fetches stored coefficient rows for one sensor and variable.
type AssetLister interface {
	ListBySensorVariable(ctx context.Context, sensor string, variable domain.Variable) ([]domain.NetworkAsset, error)
}

// StoreSource serves bank sets assembled from stored coefficient rows.
// Banks are immutable once built, so loaded sets are cached for reuse
// across shards.
type StoreSource struct {
	assets AssetLister

	mu    sync.RWMutex
	cache map[string]*BankSet
}

// NewStoreSource creates a bank source backed by a coefficient store.
func NewStoreSource(assets AssetLister) *StoreSource {
	return &StoreSource{
		assets: assets,
		cache:  make(map[string]*BankSet),
	}
}

// BankSet resolves the bank pair for a sensor and variable.
func (s *StoreSource) BankSet(ctx context.Context, sensor string, variable domain.Variable) (*BankSet, error) {
	key := sensor + "_" + string(variable)

	s.mu.RLock()
	set, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return set, nil
	}

	rows, err := s.assets.ListBySensorVariable(ctx, sensor, variable)
	if err != nil {
		return nil, fmt.Errorf("list networks %s/%s: %w", sensor, variable, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no networks stored for %s/%s", sensor, variable)
	}

	var estimateRows, uncertaintyRows []domain.NetworkAsset
	for _, row := range rows {
		switch row.Kind {
		case domain.NetworkKindEstimate:
			estimateRows = append(estimateRows, row)
		case domain.NetworkKindUncertainty:
			uncertaintyRows = append(uncertaintyRows, row)
		default:
			return nil, fmt.Errorf("network %s has unknown kind %q", row.ID, row.Kind)
		}
	}

	estimate, err := FromAssets(estimateRows)
	if err != nil {
		return nil, fmt.Errorf("estimate bank %s/%s: %w", sensor, variable, err)
	}
	uncertainty, err := FromAssets(uncertaintyRows)
	if err != nil {
		return nil, fmt.Errorf("uncertainty bank %s/%s: %w", sensor, variable, err)
	}

	set, err = NewBankSet(estimate, uncertainty)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = set
	s.mu.Unlock()
	return set, nil
}
