package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/dustin/go-humanize"
)

// textViewport renders a conversation as wrapped terminal lines. One line is
// one unit of scroll height.
type textViewport struct {
	width int
	now   func() time.Time
	lines []string
	top   float64
}

func newTextViewport(width int) *textViewport {
	if width < 20 {
		width = 20
	}
	return &textViewport{width: width, now: time.Now}
}

func (v *textViewport) ScrollTop() float64 { return v.top }

func (v *textViewport) ScrollHeight() float64 { return float64(len(v.lines)) }

func (v *textViewport) SetScrollTop(offset float64) {
	if offset < 0 {
		offset = 0
	}
	v.top = offset
}

func (v *textViewport) Render(msgs []messages.Message) {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, v.format(m)...)
	}
	v.lines = lines
}

// WriteTo prints every rendered line starting at the scroll offset.
func (v *textViewport) WriteTo(w io.Writer) (int64, error) {
	var written int64
	start := int(v.top)
	if start > len(v.lines) {
		start = len(v.lines)
	}
	for _, line := range v.lines[start:] {
		n, err := fmt.Fprintln(w, line)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (v *textViewport) format(m messages.Message) []string {
	header := fmt.Sprintf("[%s] %s:", relativeTime(m.Timestamp, v.now()), m.Sender)
	return append([]string{header}, wrap(m.Content, v.width-2, "  ")...)
}

func relativeTime(stamp string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return stamp
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// wrap splits text on whitespace into lines no longer than width, each
// carrying indent. Words longer than width get a line of their own.
func wrap(text string, width int, indent string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{indent}
	}

	var (
		out  []string
		line strings.Builder
	)
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > width {
			out = append(out, indent+line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	return append(out, indent+line.String())
}
