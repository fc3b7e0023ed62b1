package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ScheduleEntry is one planned card for a (date, board) pair.
type ScheduleEntry struct {
	ID           int64     `db:"id"            json:"id"`
	ScheduleDate Date      `db:"schedule_date" json:"schedule_date"`
	Board        Board     `db:"board"         json:"board_type"`
	Version      Version   `db:"version"       json:"version"`
	Title        string    `db:"title"         json:"workout_title"`
	DateLabel    *string   `db:"date_label"    json:"workout_date_label,omitempty"`
	Content      string    `db:"content"       json:"html_content,omitempty"`
	ContentHash  string    `db:"content_hash"  json:"html_hash"`
	PushedBy     string    `db:"pushed_by"     json:"pushed_by"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// Ref returns the back-reference used by resolved state and audit details.
func (e *ScheduleEntry) Ref() *EntryRef {
	date := e.ScheduleDate
	return &EntryRef{Kind: RefEntry, ID: formatID(e.ID), Date: &date}
}

// EntryPatch carries the editable fields of an entry; nil fields are untouched.
type EntryPatch struct {
	Title     *string
	Content   *string
	Version   *Version
	DateLabel *string
}

// Changed lists the names of the fields the patch sets.
func (p EntryPatch) Changed() []string {
	var out []string
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.Content != nil {
		out = append(out, "content")
	}
	if p.Version != nil {
		out = append(out, "version")
	}
	if p.DateLabel != nil {
		out = append(out, "date_label")
	}
	return out
}

func (p EntryPatch) Empty() bool { return len(p.Changed()) == 0 }

// DaySchedule groups the entries of one date by board.
type DaySchedule struct {
	Date    Date                    `json:"date"`
	Entries map[Board]ScheduleEntry `json:"entries"`
}

// HashContent is the SHA-256 hex digest used for change detection and ETags.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
