// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bvk/accumbot/binance"
	"github.com/bvk/accumbot/clock"
	"github.com/bvk/accumbot/events"
	"github.com/bvk/accumbot/telegram"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Setup struct {
	dataDir     string
	secretsPath string

	binanceKey    string
	binanceSecret string

	telegramToken  string
	telegramChatID int64

	skipTesting bool
}

func (c *Setup) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("setup", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.StringVar(&c.binanceKey, "binance-key", "", "venue api key")
	fset.StringVar(&c.binanceSecret, "binance-secret", "", "venue api secret")
	fset.StringVar(&c.telegramToken, "telegram-token", "", "telegram bot token")
	fset.Int64Var(&c.telegramChatID, "telegram-chat-id", 0, "telegram chat id for notifications")
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "setup", fset, cli.CmdFunc(c.run)
}

func (c *Setup) Purpose() string {
	return "Setup prints and/or configures the accumulation bot credentials"
}

func (c *Setup) Description() string {
	return `

Command "setup" saves the venue api keys and the optional Telegram
notification parameters into the secrets file. Without any flags it
prints the current configuration.

  $ accumbot setup -binance-key=111 -binance-secret=222
  $ accumbot setup -telegram-token=33333:aaaaa -telegram-chat-id=4444

Credentials are verified against the live services before they are
saved; use -skip-testing to save them unverified.

`
}

func (c *Setup) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}
	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".accumbot")
	}
	dataDir, err := EnsureDir(c.dataDir)
	if err != nil {
		return err
	}
	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}

	secrets, err := SecretsFromFile(c.secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		secrets = new(Secrets)
	}

	changed := false
	if len(c.binanceKey) != 0 || len(c.binanceSecret) != 0 {
		secrets.Binance = &binance.Credentials{Key: c.binanceKey, Secret: c.binanceSecret}
		changed = true
	}
	if len(c.telegramToken) != 0 || c.telegramChatID != 0 {
		secrets.Telegram = &telegram.Secrets{BotToken: c.telegramToken, ChatID: c.telegramChatID}
		changed = true
	}

	if !changed {
		js, _ := json.MarshalIndent(secrets, "", "  ")
		fmt.Printf("%s\n", js)
		return nil
	}

	if !c.skipTesting {
		if secrets.Binance != nil {
			account, err := binance.Connect(ctx, secrets.Binance, nil /* hubAssets */)
			if err != nil {
				return fmt.Errorf("could not verify venue credentials: %w", err)
			}
			account.Close()
		}
		if secrets.Telegram != nil {
			if err := c.testTelegram(ctx, secrets.Telegram); err != nil {
				return err
			}
		}
	}

	if err := secrets.WriteFile(c.secretsPath); err != nil {
		return err
	}
	fmt.Printf("saved credentials to %s\n", c.secretsPath)
	return nil
}

func (c *Setup) testTelegram(ctx context.Context, secrets *telegram.Secrets) error {
	fmt.Println("Start a chat with the telegram bot and then press any key")
	// switch stdin into 'raw' mode
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	b := make([]byte, 1)
	_, rerr := os.Stdin.Read(b)
	term.Restore(int(os.Stdin.Fd()), oldState)
	if rerr != nil {
		return rerr
	}

	clk := clock.NewRealtime(0)
	defer clk.Close()
	dispatcher := events.NewDispatcher(clk)
	defer dispatcher.Close()

	notifier, err := telegram.NewNotifier(ctx, secrets, clk, dispatcher)
	if err != nil {
		return fmt.Errorf("could not verify telegram credentials: %w", err)
	}
	return notifier.Close()
}
