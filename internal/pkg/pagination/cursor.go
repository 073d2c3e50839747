package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultLimit is the page size used when the client does not ask for one
	DefaultLimit = 50
	// MaxLimit caps the page size a client may request
	MaxLimit = 100
)

// Cursor represents a pagination cursor
type Cursor struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Offset    int       `json:"off,omitempty"`
}

// Encode encodes the cursor to a string
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes a cursor string
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	return &cursor, nil
}

// NewCursor creates a new cursor from an ID and timestamp
func NewCursor(id string, timestamp time.Time) *Cursor {
	return &Cursor{
		ID:        id,
		Timestamp: timestamp,
	}
}

// NewOffsetCursor creates a new offset-based cursor
func NewOffsetCursor(offset int) *Cursor {
	return &Cursor{
		Offset: offset,
	}
}

// Params holds the pagination inputs parsed from a request
type Params struct {
	Limit int
	After *Cursor
}

// ParseParams builds pagination parameters from raw query values
func ParseParams(limit int, cursor string) (Params, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	after, err := DecodeCursor(cursor)
	if err != nil {
		return Params{}, err
	}

	return Params{Limit: limit, After: after}, nil
}

// Page is a paginated response envelope
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// NewPage builds a page envelope, encoding the next cursor when more
// rows remain past this page
func NewPage[T any](items []T, next *Cursor) Page[T] {
	page := Page[T]{Items: items}
	if items == nil {
		page.Items = []T{}
	}
	if next != nil {
		page.NextCursor = next.Encode()
		page.HasMore = true
	}
	return page
}
