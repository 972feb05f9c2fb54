// Copyright (c) 2023 BVK Chaitanya

// Package ctxutil has small helpers for context-scoped background work.
package ctxutil

import (
	"context"
	"os"
	"sync"
	"time"
)

// Sleep blocks the caller for the given duration. Returns early if the
// input context is canceled.
func Sleep(ctx context.Context, d time.Duration) {
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
}

// CloseGroup runs background goroutines under a shared context that is
// canceled by Close. Close waits for all goroutines to finish. The zero
// value is ready to use.
type CloseGroup struct {
	once sync.Once

	ctx    context.Context
	cancel context.CancelCauseFunc

	wg sync.WaitGroup
}

func (cg *CloseGroup) init() {
	cg.ctx, cg.cancel = context.WithCancelCause(context.Background())
}

// Context returns the context shared by all goroutines of the group.
func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.ctx
}

// Go runs f in a new goroutine of the group.
func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)
	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()
		f(cg.ctx)
	}()
}

// Close cancels the group context and waits for all goroutines.
func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.cancel(os.ErrClosed)
	cg.wg.Wait()
}
