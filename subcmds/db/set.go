// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/bvk/accumbot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"
)

type Set struct {
	cmdutil.DBFlags
}

func (c *Set) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "set", fset, cli.CmdFunc(c.run)
}

func (c *Set) Purpose() string {
	return "Updates the value of a key in the database"
}

func (c *Set) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("needs two (key, hex-value) arguments")
	}
	value, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("could not decode hex value: %w", err)
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	set := func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Set(ctx, args[0], bytes.NewReader(value))
	}
	return kv.WithReadWriter(ctx, db, set)
}
