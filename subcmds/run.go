// Copyright (c) 2023 BVK Chaitanya

// Package subcmds implements the top-level commands of the accumbot
// binary.
package subcmds

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bvk/accumbot/binance"
	"github.com/bvk/accumbot/bot"
	"github.com/bvk/accumbot/clock"
	"github.com/bvk/accumbot/events"
	"github.com/bvk/accumbot/telegram"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

type Run struct {
	dataDir     string
	secretsPath string

	gmtOffset time.Duration

	botName string

	quoteAsset     string
	mainAsset      string
	mainBuyAmount  float64
	otherAssets    string
	otherBuyAmount float64
	minOrderAmount float64

	noTelegram bool
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.DurationVar(&c.gmtOffset, "gmt-offset", 0, "offset applied to the daily report hour")
	fset.StringVar(&c.botName, "name", "accumulation", "bot name used for the trade journal")
	fset.StringVar(&c.quoteAsset, "quote-asset", "USDT", "asset all buys are paid with")
	fset.StringVar(&c.mainAsset, "main-asset", "BTC", "asset bought every day")
	fset.Float64Var(&c.mainBuyAmount, "main-buy-amount", 15, "main asset daily buy value in the quote asset")
	fset.StringVar(&c.otherAssets, "other-assets", "ETH,LTC,ADA", "comma-separated alternate asset rotation")
	fset.Float64Var(&c.otherBuyAmount, "other-buy-amount", 11, "alternate asset daily buy value in the quote asset")
	fset.Float64Var(&c.minOrderAmount, "min-order-amount", 10, "venue minimum order value in the quote asset")
	fset.BoolVar(&c.noTelegram, "no-telegram", false, "when true, notifications are disabled")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs the accumulation bot in foreground"
}

func (c *Run) Description() string {
	return `

Command "run" starts the accumulation bot service. The bot buys small
amounts of the configured assets on price dips, keeps its trade journal
in a local database under the data directory and reports over Telegram.

SECRETS FILE

Trading requires venue api keys and, for notifications, a Telegram bot
token. They are read from a JSON secrets file:

    {
        "binance":{
            "key":"111111111",
            "secret":"2222222222"
        },
        "telegram":{
            "token":"33333:aaaaa",
            "chat_id":4444444
        }
    }

The "setup" command creates this file interactively.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

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
		return err
	}
	if err := secrets.Check(); err != nil {
		return err
	}

	cfg := bot.Config{
		QuoteAsset:           c.quoteAsset,
		MainAsset:            c.mainAsset,
		MainAssetBuyAmount:   c.mainBuyAmount,
		OtherAssets:          splitAssets(c.otherAssets),
		OtherAssetsBuyAmount: c.otherBuyAmount,
		MinOrderAmount:       c.minOrderAmount,
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	lockPath := filepath.Join(dataDir, "accumbot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if owner, oerr := flock.GetOwner(); oerr == nil {
			return fmt.Errorf("is another instance (pid %d) running? could not lock %q: %w", owner.Pid, lockPath, err)
		}
		return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
	}
	defer flock.Unlock()

	logDir, err := EnsureDir(filepath.Join(dataDir, "logs"))
	if err != nil {
		return err
	}
	backend := sglog.NewBackend(&sglog.Options{
		LogDirs: []string{logDir},
	})
	defer backend.Close()
	slog.SetDefault(slog.New(backend.Handler()))

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	log.Printf("using data directory %s and secrets file %s", dataDir, c.secretsPath)

	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	account, err := binance.Connect(ctx, secrets.Binance, nil /* hubAssets */)
	if err != nil {
		return err
	}
	defer account.Close()

	clk := clock.NewRealtime(c.gmtOffset)
	dispatcher := events.NewDispatcher(clk)
	defer dispatcher.Close()
	// Ticks can dispatch events; the clock must drain before the
	// dispatcher goes away.
	defer clk.Close()

	if !c.noTelegram && secrets.Telegram != nil {
		notifier, err := telegram.NewNotifier(ctx, secrets.Telegram, clk, dispatcher)
		if err != nil {
			return err
		}
		defer notifier.Close()
	}

	b, err := bot.New(c.botName, account, clk, dispatcher, db, cfg)
	if err != nil {
		return err
	}
	b.Start()
	defer b.Stop()

	health := clk.AddTicker(time.Hour, func(ctx context.Context) error {
		return healthTick(dispatcher, start)
	})
	defer clk.RemoveTicker(health)

	log.Printf("started accumulation bot %q", c.botName)
	<-ctx.Done()
	log.Printf("accumulation bot is shutting down")
	return nil
}

// healthTick publishes the process resident set size and uptime as an
// event.
func healthTick(dispatcher *events.Dispatcher, start time.Time) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("could not inspect own process: %w", err)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return fmt.Errorf("could not read process memory info: %w", err)
	}
	dispatcher.Dispatch("health", map[string]any{
		"name":   "health",
		"rssMB":  float64(mem.RSS) / (1 << 20),
		"uptime": time.Since(start),
	})
	return nil
}

// EnsureDir creates the directory if necessary and resolves it to an
// absolute path.
func EnsureDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("could not stat directory %q: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", fmt.Errorf("could not create directory %q: %w", dir, err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("could not determine absolute path of %q: %w", dir, err)
	}
	return abs, nil
}

func splitAssets(s string) []string {
	var assets []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); len(a) > 0 {
			assets = append(assets, strings.ToUpper(a))
		}
	}
	return assets
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
