package inbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/NextMind-AI/crm-go/messages"
)

type fetchCall struct {
	ClinicID string
	Key      string
	Page     int
	Limit    int
}

type fetchResult struct {
	page messages.Page
	err  error
}

// fakeFetcher serves scripted pages. When gate is set, every fetch blocks
// until a value is sent on it.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	pages   map[int][]fetchResult
	gate    chan struct{}
	started chan fetchCall
	holds   map[int]*pageHold
}

type pageHold struct {
	started chan struct{}
	gate    chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[int][]fetchResult)}
}

// on queues a response for page. Responses for the same page are consumed in
// order; the last one is reused.
func (f *fakeFetcher) on(page int, records []messages.RawRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page] = append(f.pages[page], fetchResult{
		page: messages.Page{Records: records, Shape: messages.ShapeEnvelope},
		err:  err,
	})
}

func (f *fakeFetcher) FetchPage(ctx context.Context, clinicID, key string, page, limit int) (messages.Page, error) {
	call := fetchCall{ClinicID: clinicID, Key: key, Page: page, Limit: limit}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, started := f.gate, f.started
	hold := f.holds[page]
	f.mu.Unlock()

	if hold != nil {
		hold.started <- struct{}{}
		select {
		case <-hold.gate:
		case <-ctx.Done():
			return messages.Page{}, ctx.Err()
		}
	}

	if started != nil {
		started <- call
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return messages.Page{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.pages[page]
	if len(queue) == 0 {
		return messages.Page{Shape: messages.ShapeEnvelope}, nil
	}
	res := queue[0]
	if len(queue) > 1 {
		f.pages[page] = queue[1:]
	}
	res.page.Pagination = messages.Pagination{Page: page, Limit: limit, Total: len(res.page.Records)}
	return res.page, res.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan fetchCall, 16)
}

// hold blocks fetches of one page until release is called. started receives
// once per fetch that reaches the hold.
func (f *fakeFetcher) hold(page int) (started <-chan struct{}, release func()) {
	h := &pageHold{started: make(chan struct{}, 16), gate: make(chan struct{})}

	f.mu.Lock()
	if f.holds == nil {
		f.holds = make(map[int]*pageHold)
	}
	f.holds[page] = h
	f.mu.Unlock()

	return h.started, func() { close(h.gate) }
}

func (f *fakeFetcher) release() {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	gate <- struct{}{}
}

// records builds n records with ids prefix-from .. prefix-(from+n-1) and
// increasing timestamps so pages stay chronological.
func records(prefix string, from, n int) []messages.RawRecord {
	out := make([]messages.RawRecord, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, messages.RawRecord{
			ID:        messages.RecordID(fmt.Sprintf("%s-%04d", prefix, i)),
			Content:   fmt.Sprintf("message %d", i),
			Sender:    "user",
			Timestamp: fmt.Sprintf("2025-01-01T%02d:%02d:%02dZ", (i/3600)%24, (i/60)%60, i%60),
		})
	}
	return out
}
