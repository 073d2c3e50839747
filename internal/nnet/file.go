package nnet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/canopylabs/canopy/internal/domain"
)

type bankFileNetwork struct {
	Class int `json:"class"`
	Network
}

type bankFile struct {
	Sensor      string            `json:"sensor"`
	Variable    domain.Variable   `json:"variable"`
	Estimate    []bankFileNetwork `json:"estimate"`
	Uncertainty []bankFileNetwork `json:"uncertainty"`
}

// LoadBankSetFile reads one coefficient file holding the estimate and
// uncertainty networks for a (sensor, variable) pair.
func LoadBankSetFile(path string) (*BankSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank file: %w", err)
	}

	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bank file %s: %w", filepath.Base(path), err)
	}

	estimate, err := fileBank(f, domain.NetworkKindEstimate, f.Estimate)
	if err != nil {
		return nil, err
	}
	uncertainty, err := fileBank(f, domain.NetworkKindUncertainty, f.Uncertainty)
	if err != nil {
		return nil, err
	}
	return NewBankSet(estimate, uncertainty)
}

func fileBank(f bankFile, kind domain.NetworkKind, entries []bankFileNetwork) (*Bank, error) {
	byClass := make(map[int]*Network, len(entries))
	for _, e := range entries {
		if _, dup := byClass[e.Class]; dup {
			return nil, fmt.Errorf("%s/%s/%s has duplicate class %d", f.Sensor, f.Variable, kind, e.Class)
		}
		n := e.Network
		byClass[e.Class] = &n
	}
	return NewBank(f.Sensor, f.Variable, kind, byClass)
}

// FileSource serves bank sets from a directory of coefficient files
// named <sensor>_<variable>.json. Loaded sets are cached for reuse
// across shards.
type FileSource struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*BankSet
}

// NewFileSource creates a file-backed bank source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:   dir,
		cache: make(map[string]*BankSet),
	}
}

// BankSet resolves the bank pair for a sensor and variable.
func (s *FileSource) BankSet(_ context.Context, sensor string, variable domain.Variable) (*BankSet, error) {
	key := sensor + "_" + string(variable)

	s.mu.RLock()
	set, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return set, nil
	}

	set, err := LoadBankSetFile(filepath.Join(s.dir, key+".json"))
	if err != nil {
		return nil, err
	}
	if set.Estimate.Sensor != sensor || set.Estimate.Variable != variable {
		return nil, fmt.Errorf("bank file %s.json declares %s/%s", key, set.Estimate.Sensor, set.Estimate.Variable)
	}

	s.mu.Lock()
	s.cache[key] = set
	s.mu.Unlock()
	return set, nil
}
