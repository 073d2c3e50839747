package dto

import "github.com/canopylabs/canopy/internal/domain"

// SubmitJobRequest represents the request to submit a sampling or
// mapping job. Params knobs left unset fall back to service defaults.
type SubmitJobRequest struct {
	Sensor   string           `json:"sensor" validate:"required"`
	Variable domain.Variable  `json:"variable" validate:"required,variable"`
	Params   domain.JobParams `json:"params"`
}
