// Copyright (c) 2023 BVK Chaitanya

// Package cmdutil holds flag helpers shared by the subcommands.
package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/bvkgo/kv"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
)

// DBFlags locates the bot's local database. The returned closer must
// be run when the command is done with the database.
type DBFlags struct {
	dataDir string
}

func (f *DBFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.dataDir, "data-dir", "", "path to the data directory")
}

func (f *DBFlags) GetDatabase(ctx context.Context) (kv.Database, func(), error) {
	if len(f.dataDir) == 0 {
		f.dataDir = filepath.Join(os.Getenv("HOME"), ".accumbot")
	}

	isGoodKey := func(k string) bool {
		return path.IsAbs(k) && k == path.Clean(k)
	}

	bopts := badger.DefaultOptions(filepath.Join(f.dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open the database: %w", err)
	}
	db := kvbadger.New(bdb, isGoodKey)
	return db, func() { bdb.Close() }, nil
}
