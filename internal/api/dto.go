package api

import (
	"sort"

	"github.com/soffiafdz/palimpsest-sub000/internal/marker"
	"github.com/soffiafdz/palimpsest-sub000/internal/model"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

// SyncRequest is the request body of POST /api/sync. Every field is
// optional.
type SyncRequest struct {
	Mode  string `json:"mode" example:"full" enums:"full,ingest,regenerate"`
	Scope string `json:"scope" example:"manuscript"`
	Force bool   `json:"force"`
}

// GenerateRequest is the request body of POST /api/generate.
type GenerateRequest struct {
	Scope string `json:"scope" example:"journal"`
}

// GenerateResponse reports a generator run.
type GenerateResponse struct {
	Scope     string         `json:"scope" validate:"required"`
	Generated map[string]int `json:"generated" validate:"required"`
	Changed   map[string]int `json:"changed" validate:"required"`
	Deleted   []string       `json:"deleted" validate:"required"`
	Pruned    int            `json:"pruned"`
}

// NewGenerateResponse converts generator stats to the wire form.
func NewGenerateResponse(s *wiki.Stats) GenerateResponse {
	deleted := s.Deleted
	if deleted == nil {
		deleted = []string{}
	}
	sort.Strings(deleted)
	return GenerateResponse{
		Scope:     s.Scope,
		Generated: byFamilyName(s.Generated),
		Changed:   byFamilyName(s.Changed),
		Deleted:   deleted,
		Pruned:    s.Pruned,
	}
}

func byFamilyName(m map[model.Family]int) map[string]int {
	out := make(map[string]int, len(m))
	for f, n := range m {
		out[f.String()] = n
	}
	return out
}

// PendingResponse reports the pending-edit marker.
type PendingResponse struct {
	Pending bool           `json:"pending"`
	Marker  *marker.Marker `json:"marker,omitempty"`
}

// PageDetail is a page of the output tree (aliased from the service layer).
type PageDetail = wikiservice.PageDetail
