// Copyright (c) 2023 BVK Chaitanya

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestComputeOncePerTTL(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2023, time.September, 24, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Minute)
	c.nowFunc = func() time.Time { return now }

	var computes atomic.Int64
	update := func(ctx context.Context) (int, error) {
		computes.Add(1)
		return 42, nil
	}

	// Two calls in quick succession must compute exactly once.
	for i := 0; i < 2; i++ {
		v, err := c.GetOrUpdate(ctx, "k", update)
		if err != nil {
			t.Fatal(err)
		}
		if v != 42 {
			t.Fatalf("value: want 42, got %d", v)
		}
	}
	if n := computes.Load(); n != 1 {
		t.Fatalf("computes: want 1, got %d", n)
	}

	// Regression: an entry is valid for the whole TTL window and expires
	// only when now > updateTime + ttl.
	now = now.Add(time.Minute)
	if _, err := c.GetOrUpdate(ctx, "k", update); err != nil {
		t.Fatal(err)
	}
	if n := computes.Load(); n != 1 {
		t.Fatalf("entry within TTL must not recompute, got %d computes", n)
	}

	now = now.Add(time.Millisecond)
	if _, err := c.GetOrUpdate(ctx, "k", update); err != nil {
		t.Fatal(err)
	}
	if n := computes.Load(); n != 2 {
		t.Fatalf("entry past TTL must recompute, got %d computes", n)
	}
}

func TestZeroTTLCachesForever(t *testing.T) {
	ctx := context.Background()

	now := time.Unix(0, 0)
	c := New[string](0)
	c.nowFunc = func() time.Time { return now }

	var computes atomic.Int64
	update := func(ctx context.Context) (string, error) {
		computes.Add(1)
		return "v", nil
	}

	if _, err := c.GetOrUpdate(ctx, "k", update); err != nil {
		t.Fatal(err)
	}
	now = now.Add(1000 * time.Hour)
	if _, err := c.GetOrUpdate(ctx, "k", update); err != nil {
		t.Fatal(err)
	}
	if n := computes.Load(); n != 1 {
		t.Fatalf("zero TTL must never recompute, got %d computes", n)
	}
}

func TestFailedComputeNotCached(t *testing.T) {
	ctx := context.Background()
	c := New[int](0)

	errCompute := errors.New("compute failure")
	var computes atomic.Int64
	fail := func(ctx context.Context) (int, error) {
		computes.Add(1)
		return 0, errCompute
	}

	if _, err := c.GetOrUpdate(ctx, "k", fail); !errors.Is(err, errCompute) {
		t.Fatalf("want %v, got %v", errCompute, err)
	}
	v, err := c.GetOrUpdate(ctx, "k", func(ctx context.Context) (int, error) {
		computes.Add(1)
		return 7, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Fatalf("value: want 7, got %d", v)
	}
	if n := computes.Load(); n != 2 {
		t.Fatalf("computes: want 2, got %d", n)
	}
}

func TestSingleInflight(t *testing.T) {
	ctx := context.Background()
	c := New[int](time.Hour)

	var computes atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context) (int, error) {
		computes.Add(1)
		close(started)
		<-release
		return 13, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = c.GetOrUpdate(ctx, "k", slow)
	}()
	<-started

	for i := 1; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrUpdate(ctx, "k", slow)
		}(i)
	}
	close(release)
	wg.Wait()

	if n := computes.Load(); n != 1 {
		t.Fatalf("concurrent callers must share one compute, got %d", n)
	}
	for i, v := range results {
		if v != 13 {
			t.Fatalf("caller %d: want 13, got %d", i, v)
		}
	}
}

func TestValuesSnapshot(t *testing.T) {
	ctx := context.Background()
	c := New[int](0)

	for i, k := range []string{"a", "b", "c"} {
		v := i + 1
		if _, err := c.GetOrUpdate(ctx, k, func(ctx context.Context) (int, error) {
			return v, nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	vs := c.Values()
	if len(vs) != 3 {
		t.Fatalf("values: want 3, got %d", len(vs))
	}
	sum := 0
	for _, v := range vs {
		sum += v
	}
	if sum != 6 {
		t.Fatalf("values sum: want 6, got %d", sum)
	}
}
