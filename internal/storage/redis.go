package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const redisKeyPrefix = "workoutboard:static:"

// RedisStorage keeps one hash per board with no expiry.
type RedisStorage struct {
	rdb *redis.Client
}

func NewRedisStorage(rdb *redis.Client) *RedisStorage {
	return &RedisStorage{rdb: rdb}
}

func (rs *RedisStorage) Name() string { return "redis" }

func redisKey(board model.Board) string { return redisKeyPrefix + string(board) }

func (rs *RedisStorage) Save(ctx context.Context, board model.Board, a *model.Artifact) error {
	if err := checkBoard(board); err != nil {
		return err
	}
	meta, err := json.Marshal(newRecord(board, a))
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	if err := rs.rdb.HSet(ctx, redisKey(board), "content", a.Content, "meta", string(meta)).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", board, err)
	}
	return nil
}

func (rs *RedisStorage) Load(ctx context.Context, board model.Board) (*model.Artifact, error) {
	if err := checkBoard(board); err != nil {
		return nil, err
	}
	fields, err := rs.rdb.HGetAll(ctx, redisKey(board)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", board, err)
	}
	content, ok := fields["content"]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord([]byte(fields["meta"]), board, rs.Name()).artifact(content), nil
}
