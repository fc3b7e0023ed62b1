package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/fileutil"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// FileStorage keeps <dir>/<board>.html and <dir>/<board>.json.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (fs *FileStorage) Name() string { return "file" }

func (fs *FileStorage) paths(board model.Board) (string, string) {
	base := filepath.Join(fs.dir, string(board))
	return base + ".html", base + ".json"
}

// Save writes the content first and the metadata second; a reader that sees
// new metadata therefore always finds the matching content.
func (fs *FileStorage) Save(_ context.Context, board model.Board, a *model.Artifact) error {
	if err := checkBoard(board); err != nil {
		return err
	}
	htmlPath, metaPath := fs.paths(board)

	meta, err := json.Marshal(newRecord(board, a))
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(htmlPath, []byte(a.Content), 0o644); err != nil {
		return fmt.Errorf("write cached content: %w", err)
	}
	if err := fileutil.WriteFileAtomic(metaPath, meta, 0o644); err != nil {
		return fmt.Errorf("write cache metadata: %w", err)
	}
	log.Debug().Str("board", string(board)).Str("path", htmlPath).Msg("static cache saved")
	return nil
}

func (fs *FileStorage) Load(_ context.Context, board model.Board) (*model.Artifact, error) {
	if err := checkBoard(board); err != nil {
		return nil, err
	}
	htmlPath, metaPath := fs.paths(board)

	content, err := os.ReadFile(htmlPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached content: %w", err)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read cache metadata: %w", err)
	}
	return decodeRecord(data, board, fs.Name()).artifact(string(content)), nil
}
