package messages

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Shape identifies which upstream response layout a body matched.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeEnvelope is {"data": [...], "pagination": {...}}.
	ShapeEnvelope
	// ShapeLegacy is {"messages": [...]}.
	ShapeLegacy
	// ShapeBareArray is a top-level array of records.
	ShapeBareArray
)

func (s Shape) String() string {
	switch s {
	case ShapeEnvelope:
		return "envelope"
	case ShapeLegacy:
		return "legacy"
	case ShapeBareArray:
		return "bare_array"
	default:
		return "unknown"
	}
}

// ErrNotJSON is returned by ParseResponse for bodies that are not JSON.
var ErrNotJSON = errors.New("response body is not valid JSON")

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Messages   json.RawMessage `json:"messages"`
	Pagination *Pagination     `json:"pagination"`
}

// ParseResponse decodes an upstream page. Shapes are tried in order:
// an object with a "data" array, an object with a "messages" array, then a
// bare array. Anything else yields ShapeUnknown with no records. Missing
// pagination metadata is derived from the requested page and limit.
func ParseResponse(body []byte, page, limit int) (Page, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return Page{Pagination: derivePagination(nil, page, limit, 0)}, ErrNotJSON
	}

	var (
		records []RawRecord
		meta    *Pagination
		shape   = ShapeUnknown
	)

	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &records); err == nil {
			shape = ShapeBareArray
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			break
		}
		if isArray(env.Data) {
			if err := json.Unmarshal(env.Data, &records); err == nil {
				shape = ShapeEnvelope
				meta = env.Pagination
			}
		} else if isArray(env.Messages) {
			if err := json.Unmarshal(env.Messages, &records); err == nil {
				shape = ShapeLegacy
			}
		}
	}

	if shape == ShapeUnknown {
		records = nil
	}

	return Page{
		Records:    records,
		Pagination: derivePagination(meta, page, limit, len(records)),
		Shape:      shape,
	}, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func derivePagination(meta *Pagination, page, limit, count int) Pagination {
	var p Pagination
	if meta != nil {
		p = *meta
	}
	if p.Page <= 0 {
		p.Page = page
	}
	if p.Limit <= 0 {
		p.Limit = limit
	}
	if meta == nil {
		p.Total = count
	}
	if p.TotalPages <= 0 {
		p.TotalPages = p.Page
		if count > 0 && count == p.Limit {
			p.TotalPages++
		}
	}
	return p
}
