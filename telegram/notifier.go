// Copyright (c) 2023 BVK Chaitanya

// Package telegram forwards the event stream to a Telegram chat.
// Events arriving close together are aggregated into one message so a
// busy minute does not flood the chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	accbot "github.com/bvk/accumbot/bot"
	"github.com/bvk/accumbot/clock"
	"github.com/bvk/accumbot/ctxutil"
	"github.com/bvk/accumbot/events"

	"github.com/go-telegram/bot"
)

const (
	// aggregationWindow is how long the oldest queued event may wait
	// before the queue is flushed as one message.
	aggregationWindow = 8 * time.Second

	flushPollInterval = time.Second

	// insufficientRepeatInterval throttles the insufficient-funds
	// nag, which the strategy raises on every tick.
	insufficientRepeatInterval = 8 * time.Hour
)

// Notifier consumes the event stream and posts formatted messages to
// the configured chat.
type Notifier struct {
	cg ctxutil.CloseGroup

	clock clock.Clock

	chatID int64

	// send posts one message. Replaced in tests.
	send func(ctx context.Context, text string) error

	mu    sync.Mutex
	queue []*events.Event

	insufficientLast time.Time
}

// NewNotifier connects to the Telegram api and starts consuming the
// dispatcher's event stream.
func NewNotifier(ctx context.Context, secrets *Secrets, c clock.Clock, dispatcher *events.Dispatcher) (*Notifier, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}
	b, err := bot.New(secrets.BotToken)
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot api client: %w", err)
	}
	if _, err := b.GetMe(ctx); err != nil {
		return nil, fmt.Errorf("could not verify telegram bot token: %w", err)
	}

	n := &Notifier{
		clock:  c,
		chatID: secrets.ChatID,
	}
	n.send = func(ctx context.Context, text string) error {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: n.chatID,
			Text:   text,
		})
		return err
	}

	ch, unsubscribe := dispatcher.Subscribe(0)
	n.cg.Go(func(ctx context.Context) {
		defer unsubscribe()
		n.goConsume(ctx, ch)
	})
	n.cg.Go(n.goFlush)
	return n, nil
}

// Close stops the background consumers. Queued events that have not
// aggregated for long enough yet are dropped.
func (n *Notifier) Close() error {
	n.cg.Close()
	return nil
}

func (n *Notifier) goConsume(ctx context.Context, ch <-chan *events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			n.mu.Lock()
			n.queue = append(n.queue, ev)
			n.mu.Unlock()
			n.flush(ctx)
		}
	}
}

func (n *Notifier) goFlush(ctx context.Context) {
	for ctx.Err() == nil {
		ctxutil.Sleep(ctx, flushPollInterval)
		n.flush(ctx)
	}
}

// flush sends the queued events as one message once the oldest of
// them has waited out the aggregation window.
func (n *Notifier) flush(ctx context.Context) {
	n.mu.Lock()
	if len(n.queue) == 0 || n.clock.Now().Sub(n.queue[0].Time) < aggregationWindow {
		n.mu.Unlock()
		return
	}
	queue := n.queue
	n.queue = nil
	msg := n.formatEvents(queue)
	n.mu.Unlock()
	if len(msg) == 0 {
		return
	}
	if err := n.send(ctx, msg); err != nil {
		slog.Error("could not send telegram notification (dropped)", "err", err)
	}
}

// formatEvents renders a batch as one message, grouped by the source
// name carried in the event args.
func (n *Notifier) formatEvents(queue []*events.Event) string {
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := sourceName(queue[i]), sourceName(queue[j])
		if a != b {
			return a < b
		}
		return queue[i].Time.Before(queue[j].Time)
	})

	var sb strings.Builder
	prevName := ""
	for _, ev := range queue {
		line := n.eventMessage(ev)
		if len(line) == 0 {
			continue
		}
		if name := sourceName(ev); name != prevName {
			if prevName != "" {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%s\n\n", capitalize(name))
			prevName = name
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (n *Notifier) eventMessage(ev *events.Event) string {
	switch ev.Name {
	case "bot-accumulation-start":
		return "> Bot started."
	case "bot-accumulation-buy":
		return buyMessage(ev)
	case "bot-accumulation-insufficient":
		return n.insufficientMessage(ev)
	case "bot-accumulation-results":
		return resultsMessage(ev)
	case "health":
		return healthMessage(ev)
	}
	return ""
}

func buyMessage(ev *events.Event) string {
	asset, _ := ev.Args["asset"].(string)
	amount, _ := ev.Args["amount"].(float64)
	price, _ := ev.Args["price"].(float64)
	precision, ok := ev.Args["lotPrecision"].(int)
	if !ok {
		precision = 8
	}
	return fmt.Sprintf("> Bought %.*f %s ~ $%.2f", precision, amount, strings.ToUpper(asset), amount*price)
}

func (n *Notifier) insufficientMessage(ev *events.Event) string {
	now := n.clock.Now()
	if now.Before(n.insufficientLast.Add(insufficientRepeatInterval)) {
		return ""
	}
	n.insufficientLast = now

	minAmount, _ := ev.Args["minAmount"].(float64)
	quoteAsset, _ := ev.Args["quoteAsset"].(string)
	return fmt.Sprintf("> Insufficient funds. You should have at least %.2f %s.", minAmount, quoteAsset)
}

func resultsMessage(ev *events.Event) string {
	positions, ok := ev.Args["positions"].([]*accbot.Position)
	if !ok {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("> Results")
	for _, p := range positions {
		profit := p.QuoteValue - p.QuoteSpent
		sign := "+"
		if profit < 0 {
			sign, profit = "-", -profit
		}
		fmt.Fprintf(&sb, "\n%s (%s$%.2f) spent $%.2f", strings.ToUpper(p.Asset), sign, profit, p.QuoteSpent)
	}
	return sb.String()
}

func healthMessage(ev *events.Event) string {
	rss, _ := ev.Args["rssMB"].(float64)
	uptime, _ := ev.Args["uptime"].(time.Duration)
	return fmt.Sprintf("> Health: rss %.0f MB, uptime %v", rss, uptime.Round(time.Minute))
}

// sourceName is the event's originating component, used as the group
// heading.
func sourceName(ev *events.Event) string {
	if name, ok := ev.Args["name"].(string); ok && len(name) > 0 {
		return name
	}
	return ev.Name
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
