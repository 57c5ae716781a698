// Package redisctx exposes a redis hash as a render context so expressions and
// render parameters can be stored outside the process that renders them.
package redisctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

const defaultPrefix = "exprender:context:"

// Decoder turns a raw hash field into the value handed to renderers.
type Decoder func(raw string) (any, error)

// Option customises a Reader.
type Option func(*Reader)

// WithPrefix overrides the key prefix prepended to the hash name.
func WithPrefix(prefix string) Option {
	return func(r *Reader) {
		r.prefix = prefix
	}
}

// WithDecoder registers a decoder for a single field.
func WithDecoder(field string, decoder Decoder) Option {
	return func(r *Reader) {
		if decoder == nil {
			delete(r.decoders, field)
			return
		}
		r.decoders[field] = decoder
	}
}

// Reader implements exprctx.Reader on top of a redis hash. Fields without a
// decoder are returned as strings.
type Reader struct {
	ctx      context.Context
	client   backend.Cmdable
	prefix   string
	name     string
	decoders map[string]Decoder
}

var _ exprctx.Reader = (*Reader)(nil)

// New creates a Reader for the hash called name. The expression field is
// decoded as a YAML/JSON term tree and the values field as a JSON object
// unless overridden.
func New(ctx context.Context, client backend.Cmdable, name string, opts ...Option) *Reader {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Reader{
		ctx:    ctx,
		client: client,
		prefix: defaultPrefix,
		name:   strings.TrimSpace(name),
		decoders: map[string]Decoder{
			exprctx.KeyExpression: DecodeTree,
			exprctx.KeyValues:     DecodeObject,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Key returns the redis key backing the reader.
func (r *Reader) Key() string {
	return r.prefix + r.name
}

// Get reads a single field. A missing field (or hash) maps to
// exprctx.ErrKeyNotFound; connection and decoding failures are returned as
// regular errors.
func (r *Reader) Get(key string) (any, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("redisctx: reader has no client")
	}
	raw, err := r.client.HGet(r.ctx, r.Key(), key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, exprctx.NotFound(key)
		}
		return nil, fmt.Errorf("redisctx: read %s[%s]: %w", r.Key(), key, err)
	}
	decoder, ok := r.decoders[key]
	if !ok {
		return raw, nil
	}
	value, err := decoder(raw)
	if err != nil {
		return nil, fmt.Errorf("redisctx: decode %s[%s]: %w", r.Key(), key, err)
	}
	return value, nil
}

// Save writes fields into the hash, encoding term trees and maps as JSON.
func (r *Reader) Save(fields map[string]any) error {
	if r == nil || r.client == nil {
		return errors.New("redisctx: reader has no client")
	}
	values := make([]any, 0, len(fields)*2)
	for field, value := range fields {
		encoded, err := encode(value)
		if err != nil {
			return fmt.Errorf("redisctx: encode %s: %w", field, err)
		}
		values = append(values, field, encoded)
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.client.HSet(r.ctx, r.Key(), values...).Err(); err != nil {
		return fmt.Errorf("redisctx: save %s: %w", r.Key(), err)
	}
	return nil
}

// DecodeTree parses a stored term tree.
func DecodeTree(raw string) (any, error) {
	return term.Parse([]byte(raw))
}

// DecodeObject parses a stored JSON object.
func DecodeObject(raw string) (any, error) {
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
