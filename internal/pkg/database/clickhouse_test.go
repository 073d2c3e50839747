package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClickHouseDBClose(t *testing.T) {
	t.Run("handles nil connection", func(t *testing.T) {
		db := &ClickHouseDB{Conn: nil}
		err := db.Close()
		assert.NoError(t, err)
	})
}

func TestTruncateSQLClickHouse(t *testing.T) {
	// truncateSQL is shared between postgres and clickhouse
	// Additional test cases for ClickHouse-style queries

	tests := []struct {
		name     string
		sql      string
		maxLen   int
		expected string
	}{
		{
			name:     "ClickHouse insert query truncated",
			sql:      "INSERT INTO samples (id, job_id, site_id) VALUES",
			maxLen:   30,
			expected: "INSERT INTO samples (id, job_i...",
		},
		{
			name:     "ClickHouse select with array functions",
			sql:      "SELECT arrayJoin(groupArray(band)) FROM samples WHERE job_id = ?",
			maxLen:   40,
			expected: "SELECT arrayJoin(groupArray(band)) FROM ...",
		},
		{
			name:     "ClickHouse batch insert",
			sql:      "INSERT INTO samples (id, job_id, site_id, sensor, variable, longitude, latitude, value) VALUES",
			maxLen:   50,
			expected: "INSERT INTO samples (id, job_id, site_id, sensor, ...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateSQL(tt.sql, tt.maxLen)
			assert.Equal(t, tt.expected, result)
		})
	}
}
