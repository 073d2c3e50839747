package domain

import (
	"time"

	"github.com/google/uuid"
)

// NetworkAsset is one stored coefficient set for a retrieval network.
// Hidden weights are flattened row-major; HiddenSize recovers the shape.
type NetworkAsset struct {
	ID       uuid.UUID   `json:"id" db:"id"`
	Sensor   string      `json:"sensor" db:"sensor"`
	Variable Variable    `json:"variable" db:"variable"`
	Kind     NetworkKind `json:"kind" db:"kind"`
	ClassID  int         `json:"classId" db:"class_id"`

	InputBands []string  `json:"inputBands" db:"input_bands"`
	InputMin   []float64 `json:"inputMin" db:"input_min"`
	InputMax   []float64 `json:"inputMax" db:"input_max"`

	HiddenSize    int       `json:"hiddenSize" db:"hidden_size"`
	HiddenWeights []float64 `json:"hiddenWeights" db:"hidden_weights"`
	HiddenBias    []float64 `json:"hiddenBias" db:"hidden_bias"`
	OutputWeights []float64 `json:"outputWeights" db:"output_weights"`
	OutputBias    float64   `json:"outputBias" db:"output_bias"`

	OutputMin float64 `json:"outputMin" db:"output_min"`
	OutputMax float64 `json:"outputMax" db:"output_max"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
