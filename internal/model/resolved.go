package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Layer is the stage of the fallback chain an artifact came from.
type Layer int

const (
	LayerLive        Layer = 1
	LayerSnapshot    Layer = 2
	LayerStaticCache Layer = 3
	// 4 is unused: the static cache is single-tier.
	LayerSplash Layer = 5
)

func (l Layer) String() string {
	switch l {
	case LayerLive:
		return "live"
	case LayerSnapshot:
		return "snapshot"
	case LayerStaticCache:
		return "static-cache"
	case LayerSplash:
		return "splash"
	default:
		return fmt.Sprintf("layer-%d", int(l))
	}
}

type RefKind string

const (
	RefEntry    RefKind = "entry"
	RefOverride RefKind = "override"
)

// EntryRef points back at the schedule entry or override behind an artifact.
// It is a lookup key only.
type EntryRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
	Date *Date   `json:"date,omitempty"`
}

func (r *EntryRef) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *EntryRef) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into EntryRef", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, r)
}

// Artifact is displayable content plus where it came from.
type Artifact struct {
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Ref         *EntryRef `json:"entry_ref,omitempty"`
}

// NewArtifact fills in the content hash.
func NewArtifact(title, content string, ref *EntryRef) *Artifact {
	return &Artifact{Title: title, Content: content, ContentHash: HashContent(content), Ref: ref}
}

// ResolvedState is the materialized "what is live now" for one board.
type ResolvedState struct {
	Board        Board     `db:"board"         json:"board"`
	SourceLayer  Layer     `db:"source_layer"  json:"source_layer"`
	Title        string    `db:"title"         json:"title"`
	Content      string    `db:"content"       json:"-"`
	ContentHash  string    `db:"content_hash"  json:"content_hash"`
	EntryRef     *EntryRef `db:"entry_ref"     json:"entry_ref,omitempty"`
	RotationDate *Date     `db:"rotation_date" json:"rotation_date,omitempty"`
	ResolvedAt   time.Time `db:"resolved_at"   json:"resolved_at"`
}
