// Package snapshot keeps a self-contained JSON copy of the schedule on disk
// so displays can still resolve when the database is unavailable.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/audit"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/db"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/fileutil"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// FormatVersion is the document version this package writes and reads.
const FormatVersion = 1

type Current struct {
	Layer       model.Layer     `json:"layer"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	ContentHash string          `json:"content_hash"`
	EntryRef    *model.EntryRef `json:"entry_ref,omitempty"`
}

type Override struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	ContentHash string      `json:"content_hash"`
	Reason      string      `json:"reason"`
	SourceDate  *model.Date `json:"source_date,omitempty"`
	AppliedAt   time.Time   `json:"applied_at"`
	AppliedBy   string      `json:"applied_by"`
}

type Entry struct {
	ID          int64         `json:"id"`
	Date        model.Date    `json:"date"`
	Board       model.Board   `json:"board"`
	Version     model.Version `json:"version"`
	Title       string        `json:"title"`
	DateLabel   *string       `json:"date_label,omitempty"`
	Content     string        `json:"content"`
	ContentHash string        `json:"content_hash"`
	PushedBy    string        `json:"pushed_by"`
}

// Document is the on-disk snapshot.
type Document struct {
	Version     int                      `json:"version"`
	GeneratedAt time.Time                `json:"generated_at"`
	Timezone    string                   `json:"timezone"`
	Today       model.Date               `json:"today"`
	Current     map[model.Board]Current  `json:"current"`
	Overrides   map[model.Board]Override `json:"overrides"`
	Entries     []Entry                  `json:"entries"`
}

// Override returns the snapshot's active override for board, if any.
func (d *Document) Override(board model.Board) (*Override, bool) {
	o, ok := d.Overrides[board]
	if !ok {
		return nil, false
	}
	return &o, true
}

// Entry returns the snapshot's card for (date, board), if any.
func (d *Document) Entry(date model.Date, board model.Board) (*Entry, bool) {
	for i := range d.Entries {
		if d.Entries[i].Date == date && d.Entries[i].Board == board {
			return &d.Entries[i], true
		}
	}
	return nil, false
}

// Validate rejects documents this version cannot interpret.
func (d *Document) Validate() error {
	if d.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d", d.Version)
	}
	if d.Today.IsZero() {
		return errors.New("snapshot has no today")
	}
	for i, e := range d.Entries {
		if e.Date.IsZero() || e.Board == "" {
			return fmt.Errorf("snapshot entry %d is missing date or board", i)
		}
	}
	return nil
}

// Read parses and validates the snapshot at path.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Writer rebuilds the snapshot from the store after every mutation.
type Writer struct {
	store db.Store
	audit *audit.Log
	path  string
	loc   *time.Location
	now   func() time.Time
	mu    sync.Mutex
}

func NewWriter(store db.Store, auditLog *audit.Log, path string, loc *time.Location, now func() time.Time) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Writer{store: store, audit: auditLog, path: path, loc: loc, now: now}
}

func (w *Writer) Path() string { return w.path }

// Build assembles the document: resolved state, active overrides, and every
// entry from today onward.
func (w *Writer) Build(ctx context.Context) (*Document, error) {
	now := w.now()
	today := model.DateIn(now, w.loc)
	doc := &Document{
		Version:     FormatVersion,
		GeneratedAt: now.UTC(),
		Timezone:    w.loc.String(),
		Today:       today,
		Current:     map[model.Board]Current{},
		Overrides:   map[model.Board]Override{},
		Entries:     []Entry{},
	}

	resolved, err := w.store.ListResolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resolved state: %w", err)
	}
	for _, r := range resolved {
		doc.Current[r.Board] = Current{
			Layer: r.SourceLayer, Title: r.Title, Content: r.Content,
			ContentHash: r.ContentHash, EntryRef: r.EntryRef,
		}
	}

	overrides, err := w.store.ListActiveOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	for _, o := range overrides {
		doc.Overrides[o.Board] = Override{
			ID: o.ID, Content: o.Content, ContentHash: o.ContentHash, Reason: o.Reason,
			SourceDate: o.SourceDate, AppliedAt: o.AppliedAt.UTC(), AppliedBy: o.AppliedBy,
		}
	}

	entries, err := w.store.ListEntries(ctx, db.EntryFilter{Start: &today})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, Entry{
			ID: e.ID, Date: e.ScheduleDate, Board: e.Board, Version: e.Version,
			Title: e.Title, DateLabel: e.DateLabel, Content: e.Content,
			ContentHash: e.ContentHash, PushedBy: e.PushedBy,
		})
	}
	return doc, nil
}

// Refresh rebuilds and atomically rewrites the snapshot. A failure is logged
// and audited; callers treat it as a warning.
func (w *Writer) Refresh(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.refresh(ctx)
	if err == nil {
		return nil
	}

	log.Warn().Err(err).Str("path", w.path).Msg("snapshot write failed")
	if w.audit != nil {
		_ = w.audit.Append(ctx, audit.Entry{
			Action:  model.ActionSnapshotWriteFailed,
			Details: model.Details{"path": w.path, "error": err.Error()},
		})
	}
	return apperr.Wrap(apperr.KindSnapshotWrite, "snapshot write failed", err)
}

func (w *Writer) refresh(ctx context.Context) error {
	doc, err := w.Build(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(w.path, data, 0o644); err != nil {
		return err
	}
	log.Debug().Str("path", w.path).Int("entries", len(doc.Entries)).Msg("snapshot written")
	return nil
}
