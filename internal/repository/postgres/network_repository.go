package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/canopylabs/canopy/internal/domain"
)

// NetworkRepository handles retrieval network coefficients in PostgreSQL.
// Coefficient vectors live in array columns, so this repository scans
// through sqlx with pq array wrappers rather than the pgx pool.
type NetworkRepository struct {
	db *sqlx.DB
}

// NewNetworkRepository creates a new network repository
func NewNetworkRepository(db *sqlx.DB) *NetworkRepository {
	return &NetworkRepository{db: db}
}

// networkRow mirrors the networks table with scannable array types
type networkRow struct {
	ID            uuid.UUID       `db:"id"`
	Sensor        string          `db:"sensor"`
	Variable      string          `db:"variable"`
	Kind          string          `db:"kind"`
	ClassID       int             `db:"class_id"`
	InputBands    pq.StringArray  `db:"input_bands"`
	InputMin      pq.Float64Array `db:"input_min"`
	InputMax      pq.Float64Array `db:"input_max"`
	HiddenSize    int             `db:"hidden_size"`
	HiddenWeights pq.Float64Array `db:"hidden_weights"`
	HiddenBias    pq.Float64Array `db:"hidden_bias"`
	OutputWeights pq.Float64Array `db:"output_weights"`
	OutputBias    float64         `db:"output_bias"`
	OutputMin     float64         `db:"output_min"`
	OutputMax     float64         `db:"output_max"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (row networkRow) toDomain() domain.NetworkAsset {
	return domain.NetworkAsset{
		ID:            row.ID,
		Sensor:        row.Sensor,
		Variable:      domain.Variable(row.Variable),
		Kind:          domain.NetworkKind(row.Kind),
		ClassID:       row.ClassID,
		InputBands:    []string(row.InputBands),
		InputMin:      []float64(row.InputMin),
		InputMax:      []float64(row.InputMax),
		HiddenSize:    row.HiddenSize,
		HiddenWeights: []float64(row.HiddenWeights),
		HiddenBias:    []float64(row.HiddenBias),
		OutputWeights: []float64(row.OutputWeights),
		OutputBias:    row.OutputBias,
		OutputMin:     row.OutputMin,
		OutputMax:     row.OutputMax,
		CreatedAt:     row.CreatedAt,
	}
}

const networkColumns = `id, sensor, variable, kind, class_id,
	input_bands, input_min, input_max,
	hidden_size, hidden_weights, hidden_bias, output_weights, output_bias,
	output_min, output_max, created_at`

// ListBySensorVariable returns every stored network for a sensor and
// variable, covering both kinds and all land cover classes.
func (r *NetworkRepository) ListBySensorVariable(ctx context.Context, sensor string, variable domain.Variable) ([]domain.NetworkAsset, error) {
	query := `
		SELECT ` + networkColumns + `
		FROM networks
		WHERE sensor = $1 AND variable = $2
		ORDER BY kind ASC, class_id ASC
	`

	var rows []networkRow
	if err := r.db.SelectContext(ctx, &rows, query, sensor, string(variable)); err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}

	assets := make([]domain.NetworkAsset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toDomain())
	}
	return assets, nil
}

// ListVariables returns the variables a sensor has networks for
func (r *NetworkRepository) ListVariables(ctx context.Context, sensor string) ([]domain.Variable, error) {
	query := `SELECT DISTINCT variable FROM networks WHERE sensor = $1 ORDER BY variable ASC`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, sensor); err != nil {
		return nil, fmt.Errorf("failed to list network variables: %w", err)
	}

	variables := make([]domain.Variable, 0, len(names))
	for _, name := range names {
		variables = append(variables, domain.Variable(name))
	}
	return variables, nil
}

// Upsert inserts or refreshes one coefficient row, keyed on the
// (sensor, variable, kind, class) tuple.
func (r *NetworkRepository) Upsert(ctx context.Context, asset *domain.NetworkAsset) error {
	query := `
		INSERT INTO networks (` + networkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (sensor, variable, kind, class_id) DO UPDATE SET
			input_bands = EXCLUDED.input_bands,
			input_min = EXCLUDED.input_min,
			input_max = EXCLUDED.input_max,
			hidden_size = EXCLUDED.hidden_size,
			hidden_weights = EXCLUDED.hidden_weights,
			hidden_bias = EXCLUDED.hidden_bias,
			output_weights = EXCLUDED.output_weights,
			output_bias = EXCLUDED.output_bias,
			output_min = EXCLUDED.output_min,
			output_max = EXCLUDED.output_max
	`

	_, err := r.db.ExecContext(ctx, query,
		asset.ID,
		asset.Sensor,
		string(asset.Variable),
		string(asset.Kind),
		asset.ClassID,
		pq.Array(asset.InputBands),
		pq.Array(asset.InputMin),
		pq.Array(asset.InputMax),
		asset.HiddenSize,
		pq.Array(asset.HiddenWeights),
		pq.Array(asset.HiddenBias),
		pq.Array(asset.OutputWeights),
		asset.OutputBias,
		asset.OutputMin,
		asset.OutputMax,
		asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert network: %w", err)
	}
	return nil
}

// ReplaceBank swaps out every network of one sensor and variable in a
// single transaction, so a reseed never leaves stale classes behind.
func (r *NetworkRepository) ReplaceBank(ctx context.Context, sensor string, variable domain.Variable, assets []domain.NetworkAsset) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM networks WHERE sensor = $1 AND variable = $2`,
		sensor, string(variable),
	); err != nil {
		return fmt.Errorf("failed to clear networks: %w", err)
	}

	insert := `
		INSERT INTO networks (` + networkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	for _, asset := range assets {
		if asset.Sensor != sensor || asset.Variable != variable {
			return fmt.Errorf("asset %s/%s does not belong to bank %s/%s",
				asset.Sensor, asset.Variable, sensor, variable)
		}
		if _, err := tx.ExecContext(ctx, insert,
			asset.ID,
			asset.Sensor,
			string(asset.Variable),
			string(asset.Kind),
			asset.ClassID,
			pq.Array(asset.InputBands),
			pq.Array(asset.InputMin),
			pq.Array(asset.InputMax),
			asset.HiddenSize,
			pq.Array(asset.HiddenWeights),
			pq.Array(asset.HiddenBias),
			pq.Array(asset.OutputWeights),
			asset.OutputBias,
			asset.OutputMin,
			asset.OutputMax,
			asset.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert network: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit networks: %w", err)
	}
	return nil
}
