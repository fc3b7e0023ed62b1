package model

import (
	"strconv"
	"time"
)

// Reasons recorded when an override stops being active.
const (
	ClearManual     = "cleared"
	ClearSuperseded = "superseded"
	ClearRotation   = "rotation"
)

// Override is an emergency assignment that outranks the calendar for a board.
type Override struct {
	ID          string     `db:"id"           json:"id"`
	Board       Board      `db:"board"        json:"board_type"`
	Content     string     `db:"content"      json:"html_content,omitempty"`
	ContentHash string     `db:"content_hash" json:"html_hash"`
	Reason      string     `db:"reason"       json:"reason"`
	SourceDate  *Date      `db:"source_date"  json:"source_date,omitempty"`
	AppliedAt   time.Time  `db:"applied_at"   json:"applied_at"`
	AppliedBy   string     `db:"applied_by"   json:"applied_by"`
	Active      bool       `db:"active"       json:"active"`
	ClearedAt   *time.Time `db:"cleared_at"   json:"cleared_at,omitempty"`
	ClearedBy   *string    `db:"cleared_by"   json:"cleared_by,omitempty"`
	ClearReason *string    `db:"clear_reason" json:"clear_reason,omitempty"`
}

func (o *Override) Ref() *EntryRef {
	return &EntryRef{Kind: RefOverride, ID: o.ID}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
