// Package storage is the static cache: the last artifact each board
// successfully displayed, kept outside the database.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// ErrNotFound is returned by Load when nothing is cached for the board.
var ErrNotFound = errors.New("static cache: not found")

type Storage interface {
	Save(ctx context.Context, board model.Board, a *model.Artifact) error
	Load(ctx context.Context, board model.Board) (*model.Artifact, error)
	Name() string
}

// record is the metadata stored next to the cached content.
type record struct {
	Board       model.Board     `json:"board"`
	Title       string          `json:"title"`
	ContentHash string          `json:"content_hash"`
	Ref         *model.EntryRef `json:"entry_ref,omitempty"`
	SavedAt     time.Time       `json:"saved_at"`
}

func newRecord(board model.Board, a *model.Artifact) record {
	return record{Board: board, Title: a.Title, ContentHash: a.ContentHash, Ref: a.Ref, SavedAt: time.Now().UTC()}
}

// decodeRecord parses stored metadata. Unreadable metadata is logged and
// treated as absent.
func decodeRecord(raw []byte, board model.Board, backend string) record {
	var rec record
	if len(raw) == 0 {
		return rec
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn().Err(err).Str("board", string(board)).Str("backend", backend).Msg("ignoring unreadable cache metadata")
		return record{}
	}
	return rec
}

func (r record) artifact(content string) *model.Artifact {
	// Metadata from an older save must not vouch for newer content.
	if r.ContentHash != model.HashContent(content) {
		if r.ContentHash != "" {
			log.Warn().Str("board", string(r.Board)).Msg("cache metadata does not match content, rehashing")
		}
		return model.NewArtifact(r.Title, content, nil)
	}
	return &model.Artifact{Title: r.Title, Content: content, ContentHash: r.ContentHash, Ref: r.Ref}
}

var safeBoard = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// checkBoard keeps board names usable as file names and object keys.
func checkBoard(board model.Board) error {
	if !safeBoard.MatchString(string(board)) {
		return fmt.Errorf("static cache: invalid board name %q", board)
	}
	return nil
}

var (
	_ Storage = (*FileStorage)(nil)
	_ Storage = (*RedisStorage)(nil)
	_ Storage = (*SpacesStorage)(nil)
)
