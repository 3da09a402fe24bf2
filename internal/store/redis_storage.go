package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/khanghh/kbooks/model"
	"github.com/redis/go-redis/v9"
)

const (
	fieldVersion = "version"
	fieldData    = "data"
)

// redisTable keeps each row in its own hash and the row ids in a set. All keys
// share a hash tag so transactions stay on one slot in cluster mode.
type redisTable[T any, P Entity[T]] struct {
	rdb    redis.UniversalClient
	prefix string
}

func (t *redisTable[T, P]) rowsKey() string {
	return "{" + t.prefix + "}rows"
}

func (t *redisTable[T, P]) rowKey(rowID uint64) string {
	return "{" + t.prefix + "}" + strconv.FormatUint(rowID, 10)
}

func (t *redisTable[T, P]) GetAllRows(ctx context.Context) ([]*T, error) {
	ids, err := t.rdb.SMembers(ctx, t.rowsKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := t.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGet(ctx, "{"+t.prefix+"}"+id, fieldData))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	rows := make([]*T, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		} else if err != nil {
			return nil, err
		}
		row := new(T)
		if err := json.Unmarshal(data, row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *redisTable[T, P]) InsertRow(ctx context.Context, row *T) error {
	meta := P(row).Meta()
	if meta.RowID == 0 {
		meta.RowID = model.GenerateID()
	}
	meta.Version = 1
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, t.rowKey(meta.RowID), fieldVersion, meta.Version, fieldData, data)
		pipe.SAdd(ctx, t.rowsKey(), strconv.FormatUint(meta.RowID, 10))
		return nil
	})
	return err
}

func (t *redisTable[T, P]) UpdateRow(ctx context.Context, row *T) error {
	meta := P(row).Meta()
	prev := meta.Version
	key := t.rowKey(meta.RowID)

	meta.Version = prev + 1
	data, err := json.Marshal(row)
	if err != nil {
		meta.Version = prev
		return err
	}

	err = t.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return ErrStaleRow
		} else if err != nil {
			return err
		}
		if current != prev {
			return ErrStaleRow
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, meta.Version, fieldData, data)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrStaleRow
	}
	if err != nil {
		meta.Version = prev
	}
	return err
}

func (t *redisTable[T, P]) DeleteRow(ctx context.Context, rowID uint64) error {
	var delCmd *redis.IntCmd
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, t.rowKey(rowID))
		pipe.SRem(ctx, t.rowsKey(), strconv.FormatUint(rowID, 10))
		return nil
	})
	if err != nil {
		return err
	}
	if delCmd.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *redisTable[T, P]) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

func NewRedisTable[T any, P Entity[T]](rdb redis.UniversalClient, keyPrefix string) Table[T] {
	return &redisTable[T, P]{
		rdb:    rdb,
		prefix: keyPrefix,
	}
}
