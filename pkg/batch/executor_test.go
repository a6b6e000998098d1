package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scholarly-go/openalex-client/pkg/response"
)

type fetchFunc func(ctx context.Context, url string) (*response.Page, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (*response.Page, error) {
	return f(ctx, url)
}

func pageFor(url string) *response.Page {
	return &response.Page{
		Results: []response.Record{{"id": url}},
		Meta:    response.Meta{Count: 1},
	}
}

func TestExecute_ResultsIndexedByInputOrder(t *testing.T) {
	// url2 responds before url0; results must still land at input indices.
	delays := map[string]time.Duration{
		"url0": 60 * time.Millisecond,
		"url1": 30 * time.Millisecond,
		"url2": 0,
	}
	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		time.Sleep(delays[url])
		return pageFor(url), nil
	})

	exec := NewExecutor(fetcher, 3)
	results, err := exec.Execute(context.Background(), []string{"url0", "url1", "url2"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for i, want := range []string{"url0", "url1", "url2"} {
		if got := results[i].Results[0].ID(); got != want {
			t.Errorf("results[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestExecute_SerialOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string

	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		mu.Lock()
		order = append(order, url)
		mu.Unlock()
		if url == "url0" {
			time.Sleep(40 * time.Millisecond)
		}
		return pageFor(url), nil
	})

	exec := NewExecutor(fetcher, 1)
	results, err := exec.Execute(context.Background(), []string{"url0", "url1", "url2"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// max_concurrent=1 serializes dispatch in input order.
	if strings.Join(order, ",") != "url0,url1,url2" {
		t.Errorf("dispatch order = %v", order)
	}
	for i, want := range []string{"url0", "url1", "url2"} {
		if got := results[i].Results[0].ID(); got != want {
			t.Errorf("results[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64

	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return pageFor(url), nil
	})

	exec := NewExecutor(fetcher, 3)
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "u"
	}
	if _, err := exec.Execute(context.Background(), urls); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak.Load())
	}
}

func TestExecute_FailureDoesNotCancelSiblings(t *testing.T) {
	var completed atomic.Int64
	boom := errors.New("permanent failure")

	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		if url == "bad" {
			return nil, boom
		}
		time.Sleep(10 * time.Millisecond)
		completed.Add(1)
		return pageFor(url), nil
	})

	exec := NewExecutor(fetcher, 4)
	results, err := exec.Execute(context.Background(), []string{"a", "bad", "b", "c"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if results != nil {
		t.Error("partial results exposed on failure")
	}
	if completed.Load() != 3 {
		t.Errorf("%d sibling requests completed, want 3", completed.Load())
	}
}

func TestExecute_LowestIndexErrorWins(t *testing.T) {
	// The later request fails first; the error at the lowest input index is
	// still the one surfaced.
	errSlow := errors.New("slow failure")
	errFast := errors.New("fast failure")

	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		if url == "slow" {
			time.Sleep(40 * time.Millisecond)
			return nil, errSlow
		}
		return nil, errFast
	})

	exec := NewExecutor(fetcher, 2)
	_, err := exec.Execute(context.Background(), []string{"slow", "fast"})
	if !errors.Is(err, errSlow) {
		t.Errorf("err = %v, want wrapped %v", err, errSlow)
	}
	if !strings.Contains(err.Error(), "request 0") {
		t.Errorf("err = %v, want request 0", err)
	}
}

func TestExecute_Progress(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		return pageFor(url), nil
	})

	var calls atomic.Int64
	var lastTotal atomic.Int64
	exec := NewExecutor(fetcher, 2)
	exec.SetProgress(func(completed, total int) {
		calls.Add(1)
		lastTotal.Store(int64(total))
	})

	if _, err := exec.Execute(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("progress called %d times, want 3", calls.Load())
	}
	if lastTotal.Load() != 3 {
		t.Errorf("progress total = %d, want 3", lastTotal.Load())
	}
}

func TestExecute_Empty(t *testing.T) {
	exec := NewExecutor(fetchFunc(func(ctx context.Context, url string) (*response.Page, error) {
		t.Fatal("fetch called for empty url list")
		return nil, nil
	}), 2)

	results, err := exec.Execute(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("Execute(nil) = %v, %v", results, err)
	}
}
