package domain

// JobKind represents the kind of processing job
type JobKind string

const (
	JobKindSampling JobKind = "sampling"
	JobKindMapping  JobKind = "mapping"
)

// IsValid checks if the job kind is valid
func (k JobKind) IsValid() bool {
	switch k {
	case JobKindSampling, JobKindMapping:
		return true
	}
	return false
}

// JobStatus represents the status of a processing job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusPartial   JobStatus = "completed_with_errors"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid checks if the job status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusPartial, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal checks if the job status is terminal
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusPartial || s == JobStatusFailed || s == JobStatusCancelled
}

// ShardStatus represents the status of a single job shard
type ShardStatus string

const (
	ShardStatusPending   ShardStatus = "pending"
	ShardStatusRunning   ShardStatus = "running"
	ShardStatusSucceeded ShardStatus = "succeeded"
	ShardStatusFailed    ShardStatus = "failed"
)

// IsValid checks if the shard status is valid
func (s ShardStatus) IsValid() bool {
	switch s {
	case ShardStatusPending, ShardStatusRunning, ShardStatusSucceeded, ShardStatusFailed:
		return true
	}
	return false
}

// IsTerminal checks if the shard status is terminal
func (s ShardStatus) IsTerminal() bool {
	return s == ShardStatusSucceeded || s == ShardStatusFailed
}

// SplitUnit represents how a site date window is split into shards
type SplitUnit string

const (
	SplitUnitYear  SplitUnit = "year"
	SplitUnitMonth SplitUnit = "month"
)

// IsValid checks if the split unit is valid
func (u SplitUnit) IsValid() bool {
	switch u {
	case SplitUnitYear, SplitUnitMonth:
		return true
	}
	return false
}

// Variable represents the biophysical variable a product carries
type Variable string

const (
	// VariableSurfaceReflectance selects the conditioned input bands with
	// no retrieval applied.
	VariableSurfaceReflectance Variable = "surface_reflectance"
	VariableLAI                Variable = "LAI"
	VariableFAPAR              Variable = "fAPAR"
	VariableFCOVER             Variable = "fCOVER"
	VariableAlbedo             Variable = "Albedo"
	VariableCCC                Variable = "CCC"
	VariableCWC                Variable = "CWC"
)

// IsValid checks if the variable is valid
func (v Variable) IsValid() bool {
	switch v {
	case VariableSurfaceReflectance, VariableLAI, VariableFAPAR,
		VariableFCOVER, VariableAlbedo, VariableCCC, VariableCWC:
		return true
	}
	return false
}

// IsPassthrough reports whether the variable skips retrieval networks
func (v Variable) IsPassthrough() bool {
	return v == VariableSurfaceReflectance
}

// UncertaintyBand returns the band name carrying the variable uncertainty
func (v Variable) UncertaintyBand() string {
	return string(v) + "_uncertainty"
}

// ExportDestination represents where job results are delivered
type ExportDestination string

const (
	// DestinationWarehouse writes rows to the analytical warehouse.
	DestinationWarehouse ExportDestination = "warehouse"
	// DestinationBucket writes CSV objects to the object store.
	DestinationBucket ExportDestination = "bucket"
)

// IsValid checks if the export destination is valid
func (d ExportDestination) IsValid() bool {
	switch d {
	case DestinationWarehouse, DestinationBucket:
		return true
	}
	return false
}

// NetworkKind represents the role of a coefficient network
type NetworkKind string

const (
	NetworkKindEstimate    NetworkKind = "estimate"
	NetworkKindUncertainty NetworkKind = "uncertainty"
)

// IsValid checks if the network kind is valid
func (k NetworkKind) IsValid() bool {
	switch k {
	case NetworkKindEstimate, NetworkKindUncertainty:
		return true
	}
	return false
}

// LandCoverLegend represents the legend a land cover tile is coded in
type LandCoverLegend string

const (
	// LegendNative tiles already use the retrieval class codes.
	LegendNative LandCoverLegend = "native"
	// LegendCopernicus tiles use the Copernicus 100m discrete legend and
	// are remapped on load.
	LegendCopernicus LandCoverLegend = "copernicus"
)

// IsValid checks if the legend is valid
func (l LandCoverLegend) IsValid() bool {
	switch l {
	case LegendNative, LegendCopernicus:
		return true
	}
	return false
}

// SortOrder represents the sort order for queries
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// IsValid checks if the sort order is valid
func (o SortOrder) IsValid() bool {
	switch o {
	case SortOrderAsc, SortOrderDesc:
		return true
	}
	return false
}
