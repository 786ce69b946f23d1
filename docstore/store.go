package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable wraps any Redis failure.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrInvalidPath is returned for paths that are not "<collection>/<key>".
	ErrInvalidPath = errors.New("invalid document path")
	// ErrNotIndexed is returned by QueryEqual for fields without an index.
	ErrNotIndexed = errors.New("field is not indexed")
)

// Config controls key layout and secondary indexes.
type Config struct {
	Prefix string
	// Indexes maps a collection name to the top-level fields indexed for
	// equality queries.
	Indexes map[string][]string
}

// Store is a Redis-backed realtime document store. It is safe for concurrent use.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	indexes map[string][]string
}

// Snapshot is the value of one document at a point in time.
type Snapshot struct {
	Path   string
	Key    string
	Exists bool
	Value  json.RawMessage
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return fmt.Errorf("decode %s: document does not exist", s.Path)
	}
	return json.Unmarshal(s.Value, v)
}

func New(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "ds"
	}
	indexes := make(map[string][]string, len(cfg.Indexes))
	for col, fields := range cfg.Indexes {
		indexes[col] = append([]string(nil), fields...)
	}
	return &Store{
		redis:   client,
		prefix:  cfg.Prefix,
		indexes: indexes,
	}
}

// Get reads one document. A missing document is not an error; the snapshot
// reports Exists=false.
func (s *Store) Get(ctx context.Context, path string) (Snapshot, error) {
	col, key, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := s.redis.Get(ctx, s.docKey(col, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{Path: joinPath(col, key), Key: key}, nil
		}
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Snapshot{Path: joinPath(col, key), Key: key, Exists: true, Value: raw}, nil
}

// List returns every document in a collection. Order is unspecified.
func (s *Store) List(ctx context.Context, collection string) ([]Snapshot, error) {
	collection = strings.Trim(collection, "/")
	if collection == "" || strings.Contains(collection, "/") {
		return nil, ErrInvalidPath
	}

	keys, err := s.redis.SMembers(ctx, s.collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.fetch(ctx, collection, keys)
}

// Write replaces the document at path with value and notifies subscribers.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	col, key, err := splitPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	previous, err := s.Get(ctx, path)
	if err != nil {
		return err
	}

	envelope, err := encodeEnvelope(true, data)
	if err != nil {
		return err
	}

	oldValues := s.indexedValues(col, previous.Value)
	newValues := s.indexedValues(col, data)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(col, key), data, 0)
		pipe.SAdd(ctx, s.collectionKey(col), key)
		for field, old := range oldValues {
			if newValues[field] != old {
				pipe.SRem(ctx, s.indexKey(col, field, old), key)
			}
		}
		for field, value := range newValues {
			pipe.SAdd(ctx, s.indexKey(col, field, value), key)
		}
		pipe.Publish(ctx, s.channel(col, key), envelope)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Append writes value under a freshly generated key and returns that key.
func (s *Store) Append(ctx context.Context, collection string, value any) (string, error) {
	key := uuid.NewString()
	if err := s.Write(ctx, joinPath(collection, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the document at path and notifies subscribers. Deleting a
// missing document is a no-op apart from the notification.
func (s *Store) Delete(ctx context.Context, path string) error {
	col, key, err := splitPath(path)
	if err != nil {
		return err
	}

	previous, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	envelope, err := encodeEnvelope(false, nil)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(col, key))
		pipe.SRem(ctx, s.collectionKey(col), key)
		for field, old := range s.indexedValues(col, previous.Value) {
			pipe.SRem(ctx, s.indexKey(col, field, old), key)
		}
		pipe.Publish(ctx, s.channel(col, key), envelope)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// QueryEqual returns every document in collection whose indexed field equals
// value exactly.
func (s *Store) QueryEqual(ctx context.Context, collection, field, value string) ([]Snapshot, error) {
	collection = strings.Trim(collection, "/")
	if !s.isIndexed(collection, field) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotIndexed, collection, field)
	}

	keys, err := s.redis.SMembers(ctx, s.indexKey(collection, field, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snaps, err := s.fetch(ctx, collection, keys)
	if err != nil {
		return nil, err
	}

	// Index sets are not updated atomically with the read above, so the
	// document itself is the source of truth.
	out := snaps[:0]
	for _, snap := range snaps {
		if s.indexedValues(collection, snap.Value)[field] == value {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *Store) fetch(ctx context.Context, collection string, keys []string) ([]Snapshot, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(keys))
	for i, key := range keys {
		docKeys[i] = s.docKey(collection, key)
	}

	values, err := s.redis.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]Snapshot, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, Snapshot{
			Path:   joinPath(collection, keys[i]),
			Key:    keys[i],
			Exists: true,
			Value:  json.RawMessage(str),
		})
	}
	return out, nil
}

func (s *Store) isIndexed(collection, field string) bool {
	for _, f := range s.indexes[collection] {
		if f == field {
			return true
		}
	}
	return false
}

// indexedValues extracts the string form of every indexed top-level field
// present in data. Non-scalar values are not indexed.
func (s *Store) indexedValues(collection string, data []byte) map[string]string {
	fields := s.indexes[collection]
	if len(fields) == 0 || len(data) == 0 {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	out := make(map[string]string, len(fields))
	for _, field := range fields {
		switch v := doc[field].(type) {
		case string:
			if v != "" {
				out[field] = v
			}
		case float64, bool:
			out[field] = fmt.Sprint(v)
		}
	}
	return out
}

func (s *Store) docKey(collection, key string) string {
	return s.prefix + ":doc:" + collection + ":" + key
}

func (s *Store) collectionKey(collection string) string {
	return s.prefix + ":col:" + collection
}

func (s *Store) indexKey(collection, field, value string) string {
	return s.prefix + ":idx:" + collection + ":" + field + ":" + value
}

func (s *Store) channel(collection, key string) string {
	return s.prefix + ":chg:" + collection + ":" + key
}

func splitPath(path string) (string, string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return parts[0], parts[1], nil
}

func joinPath(collection, key string) string {
	return strings.Trim(collection, "/") + "/" + key
}
