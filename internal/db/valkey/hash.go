package valkey

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/neuralquery/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return wrap(db.OpHSet, err)
	}
	return nil
}

// HReplaceMulti issues DEL+HSET per item in a single DoMulti round-trip.
// Commands on one connection execute in order, so each hash ends up holding exactly the new fields.
func (s *Store) HReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, 2*len(items))
	for _, item := range items {
		cmds = append(cmds, s.b().Del().Key(item.Key).Build())
		hset := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds, hset.Build())
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			op := db.OpDel
			if i%2 == 1 {
				op = db.OpHSet
			}
			return wrap(op, fmt.Errorf("key %s: %w", items[i/2].Key, err))
		}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, wrap(db.OpHGetAll, err)
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return wrap(db.OpDel, err)
	}
	return nil
}

// DeleteByPrefix scans keys matching prefix* and deletes them page by page.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var deleted int
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(prefix + "*").Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return deleted, wrap(db.OpScan, err)
		}
		if len(res.Elements) > 0 {
			n, err := s.do(ctx, s.b().Del().Key(res.Elements...).Build()).AsInt64()
			if err != nil {
				return deleted, wrap(db.OpDel, err)
			}
			deleted += int(n)
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
