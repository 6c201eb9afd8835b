package template

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLister struct {
	mu      sync.Mutex
	calls   int32
	fail    bool
	tpls    []MessageTemplate
	release chan struct{} // when set, List blocks until closed
}

func (f *fakeLister) List(ctx context.Context, channel Channel, page, pageSize int) (Page, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return Page{}, errors.New("repository down")
	}
	return Page{Templates: f.tpls, Total: len(f.tpls), TotalPages: 1, IsFirst: true, IsLast: true}, nil
}

func (f *fakeLister) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func TestGetTemplates_SecondCallHitsCache(t *testing.T) {
	repo := &fakeLister{tpls: []MessageTemplate{{ID: "t1", Channel: ChannelEmail}}}
	c := NewCache(repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tpls, err := c.GetTemplates(ctx, ChannelEmail)
		if err != nil {
			t.Fatal(err)
		}
		if len(tpls) != 1 || tpls[0].ID != "t1" {
			t.Fatalf("unexpected templates: %+v", tpls)
		}
	}
	if repo.callCount() != 1 {
		t.Fatalf("want exactly 1 fetch, got %d", repo.callCount())
	}
}

func TestGetTemplates_ChannelsCachedIndependently(t *testing.T) {
	repo := &fakeLister{tpls: []MessageTemplate{{ID: "t1"}}}
	c := NewCache(repo)
	ctx := context.Background()

	if _, err := c.GetTemplates(ctx, ChannelEmail); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetTemplates(ctx, ChannelWhatsApp); err != nil {
		t.Fatal(err)
	}
	if repo.callCount() != 2 {
		t.Fatalf("want 2 fetches for 2 channels, got %d", repo.callCount())
	}
}

func TestInvalidate_TriggersRefetch(t *testing.T) {
	repo := &fakeLister{tpls: []MessageTemplate{{ID: "t1"}}}
	c := NewCache(repo)
	ctx := context.Background()

	if _, err := c.GetTemplates(ctx, ChannelEmail); err != nil {
		t.Fatal(err)
	}
	c.Invalidate(ChannelEmail)
	if _, err := c.GetTemplates(ctx, ChannelEmail); err != nil {
		t.Fatal(err)
	}
	if repo.callCount() != 2 {
		t.Fatalf("want refetch after invalidate, got %d fetches", repo.callCount())
	}
}

func TestInvalidate_UnknownChannelIsNoError(t *testing.T) {
	c := NewCache(&fakeLister{})
	c.Invalidate(ChannelWhatsApp) // must not panic or error
}

func TestGetTemplates_ConcurrentMissesCoalesce(t *testing.T) {
	repo := &fakeLister{
		tpls:    []MessageTemplate{{ID: "t1"}},
		release: make(chan struct{}),
	}
	c := NewCache(repo)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetTemplates(ctx, ChannelEmail)
			errs <- err
		}()
	}

	// Let every goroutine reach the cache before the fetch completes.
	for repo.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(repo.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if got := repo.callCount(); got != 1 {
		t.Fatalf("concurrent misses issued %d fetches, want 1", got)
	}
}

func TestGetTemplates_FetchErrorLeavesCacheUnpopulated(t *testing.T) {
	repo := &fakeLister{fail: true}
	c := NewCache(repo)
	ctx := context.Background()

	if _, err := c.GetTemplates(ctx, ChannelEmail); err == nil {
		t.Fatal("expected fetch error")
	}

	repo.mu.Lock()
	repo.fail = false
	repo.tpls = []MessageTemplate{{ID: "t1"}}
	repo.mu.Unlock()

	tpls, err := c.GetTemplates(ctx, ChannelEmail)
	if err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 1 {
		t.Fatalf("cache poisoned by failed fetch: %+v", tpls)
	}
	if repo.callCount() != 2 {
		t.Fatalf("want a retry fetch, got %d calls", repo.callCount())
	}
}
