// Copyright (c) 2023 BVK Chaitanya

// Package history persists bot trade history in a key-value database
// under slash-delimited logical paths. Values are gob encoded. Absent
// paths are treated as empty collections, never as errors.
package history

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/bvkgo/kv"
)

// Keyspace holds all bot state, as /bots/<name>/...
const Keyspace = "/bots/"

// Get reads and decodes the value at a path. Returns os.ErrNotExist
// (wrapped) when the path has no value.
func Get[T any](ctx context.Context, db kv.Database, p string) (*T, error) {
	var value *T
	err := kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		v, err := r.Get(ctx, p)
		if err != nil {
			return fmt.Errorf("could not Get from %q: %w", p, err)
		}
		gv := new(T)
		if err := gob.NewDecoder(v).Decode(gv); err != nil {
			return fmt.Errorf("could not gob-decode value at %q: %w", p, err)
		}
		value = gv
		return nil
	})
	return value, err
}

// Set gob-encodes the value and stores it at a path.
func Set[T any](ctx context.Context, db kv.Database, p string, value *T) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("could not gob-encode value for %q: %w", p, err)
	}
	return kv.WithReadWriter(ctx, db, func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Set(ctx, p, &buf)
	})
}

// Remove deletes the value at a path, if any.
func Remove(ctx context.Context, db kv.Database, p string) error {
	return kv.WithReadWriter(ctx, db, func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Delete(ctx, p)
	})
}

// pathRange returns the begin/end key range covering all keys under a
// directory path.
func pathRange(dir string) (begin, end string) {
	dir = path.Clean(dir)
	if dir == "/" {
		return "", ""
	}
	return dir + string('/'), dir + string('/'+1)
}

// ascend decodes every value under a directory path in key order.
func ascend[T any](ctx context.Context, db kv.Database, dir string, fn func(key string, value *T) error) error {
	begin, end := pathRange(dir)
	return kv.WithReader(ctx, db, func(ctx context.Context, r kv.Reader) error {
		it, err := r.Ascend(ctx, begin, end)
		if err != nil {
			return err
		}
		defer kv.Close(it)

		for k, v, err := it.Fetch(ctx, false); err == nil; k, v, err = it.Fetch(ctx, true) {
			gv := new(T)
			if err := gob.NewDecoder(v).Decode(gv); err != nil {
				return fmt.Errorf("could not gob-decode value at %q: %w", k, err)
			}
			if err := fn(k, gv); err != nil {
				return err
			}
		}
		if _, _, err := it.Fetch(ctx, false); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("could not complete ascend over %q: %w", dir, err)
		}
		return nil
	})
}
