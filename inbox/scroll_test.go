package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/NextMind-AI/crm-go/gateway"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rowHeight = 20

// fakeViewport renders each message as one fixed-height row.
type fakeViewport struct {
	top     float64
	rows    int
	renders int
}

func (v *fakeViewport) ScrollTop() float64 { return v.top }

func (v *fakeViewport) ScrollHeight() float64 { return float64(v.rows * rowHeight) }

func (v *fakeViewport) SetScrollTop(offset float64) { v.top = offset }

func (v *fakeViewport) Render(msgs []messages.Message) {
	v.rows = len(msgs)
	v.renders++
}

func loadedEngine(t *testing.T, f *fakeFetcher) *Engine {
	t.Helper()
	e := newTestEngine(t, f)
	require.NoError(t, e.LoadInitial(context.Background(), clinic, keyA))
	return e
}

func TestScrollNearTopLoadsOlderAndKeepsPosition(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 50), nil)
	f.on(2, records("m", 970, 30), nil)
	e := loadedEngine(t, f)

	vp := &fakeViewport{top: 40, rows: 50}
	loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
	require.NoError(t, err)
	assert.True(t, loaded)

	assert.Equal(t, 80, vp.rows)
	assert.Equal(t, float64(30*rowHeight), vp.top)
}

func TestScrollAboveThresholdDoesNothing(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 50), nil)
	e := loadedEngine(t, f)

	vp := &fakeViewport{top: 100, rows: 50}
	loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 1, f.callCount())
	assert.Zero(t, vp.renders)
}

func TestScrollWithoutMoreDoesNothing(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 10), nil)
	e := loadedEngine(t, f)

	vp := &fakeViewport{top: 0, rows: 10}
	loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 1, f.callCount())
}

func TestScrollFailureLeavesViewport(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 50), nil)
	f.on(2, nil, &gateway.FetchError{Err: errors.New("timeout"), URL: "http://upstream"})
	e := loadedEngine(t, f)

	vp := &fakeViewport{top: 10, rows: 50}
	loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
	require.Error(t, err)
	assert.False(t, loaded)
	assert.Equal(t, float64(10), vp.top)
	assert.Zero(t, vp.renders)
}

func TestScrollIgnoresRowsAppendedDuringLoad(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 50), nil)
	f.on(1, records("m", 1005, 50), nil)
	f.on(2, records("m", 970, 30), nil)
	e := loadedEngine(t, f)

	started, release := f.hold(2)
	vp := &fakeViewport{top: 40, rows: 50}

	type scrollResult struct {
		loaded bool
		err    error
	}
	done := make(chan scrollResult, 1)
	go func() {
		loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
		done <- scrollResult{loaded, err}
	}()
	<-started

	added, err := e.PollNew(context.Background(), clinic, keyA)
	require.NoError(t, err)
	require.Equal(t, 5, added)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.loaded)

	assert.Equal(t, 85, vp.rows)
	assert.Equal(t, float64(30*rowHeight), vp.top)
}

func TestScrollWithOnlyPolledRowsReportsNothingLoaded(t *testing.T) {
	f := newFakeFetcher()
	f.on(1, records("m", 1000, 50), nil)
	f.on(1, records("m", 1005, 50), nil)
	f.on(2, records("m", 1000, 50), nil)
	e := loadedEngine(t, f)

	started, release := f.hold(2)
	vp := &fakeViewport{top: 40, rows: 50}

	type scrollResult struct {
		loaded bool
		err    error
	}
	done := make(chan scrollResult, 1)
	go func() {
		loaded, err := NewScrollController(e).OnScroll(context.Background(), vp, clinic, keyA)
		done <- scrollResult{loaded, err}
	}()
	<-started

	_, err := e.PollNew(context.Background(), clinic, keyA)
	require.NoError(t, err)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.loaded)

	assert.Equal(t, 55, vp.rows)
	assert.Equal(t, float64(40), vp.top)
	assert.False(t, e.Snapshot(keyA).Pagination.HasMore)
}
