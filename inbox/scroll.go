package inbox

import (
	"context"

	"github.com/NextMind-AI/crm-go/messages"
)

// DefaultScrollThreshold is the distance from the top, in viewport units,
// below which an older page is requested.
const DefaultScrollThreshold = 100

// Viewport is a scrollable view over a conversation buffer.
type Viewport interface {
	ScrollTop() float64
	ScrollHeight() float64
	SetScrollTop(offset float64)
	Render(msgs []messages.Message)
}

// ScrollController loads older pages as the viewport nears the top and keeps
// the visible content in place after the prepend.
type ScrollController struct {
	engine    *Engine
	threshold float64
}

func NewScrollController(engine *Engine) *ScrollController {
	return &ScrollController{engine: engine, threshold: DefaultScrollThreshold}
}

// OnScroll is called whenever the viewport moves. It reports whether an older
// page was prepended. Messages appended by a poll that completed during the
// load do not shift the restored position.
func (s *ScrollController) OnScroll(ctx context.Context, vp Viewport, clinicID, key string) (bool, error) {
	if vp.ScrollTop() >= s.threshold {
		return false, nil
	}

	before := s.engine.Snapshot(key)
	if !before.Pagination.HasMore || before.LoadingOlder || len(before.Messages) == 0 {
		return false, nil
	}

	extentBefore := vp.ScrollHeight()

	if err := s.engine.LoadOlder(ctx, clinicID, key); err != nil {
		return false, err
	}

	after := s.engine.Snapshot(key)
	last := indexOf(after.Messages, before.Messages[len(before.Messages)-1].ID)
	if last < 0 {
		// Buffer was replaced by a reload; there is no position to keep.
		vp.Render(after.Messages)
		return false, nil
	}

	prepended := after.Messages[0].ID != before.Messages[0].ID
	appended := last < len(after.Messages)-1
	if !prepended {
		if appended {
			vp.Render(after.Messages)
		}
		return false, nil
	}

	// Measure the prepended rows against the content that was on screen.
	vp.Render(after.Messages[:last+1])
	offset := vp.ScrollHeight() - extentBefore
	if appended {
		vp.Render(after.Messages)
	}
	vp.SetScrollTop(offset)
	return true, nil
}

func indexOf(msgs []messages.Message, id string) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
