package domain

import "strings"

// DOM event names observed by the tracker.
const (
	DOMScroll           = "scroll"
	DOMClick            = "click"
	DOMVisibilityChange = "visibilitychange"
	DOMBeforeUnload     = "beforeunload"
)

const (
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
)

const fingerprintTextLimit = 50

// Element is the subset of a DOM element needed to fingerprint a click.
type Element struct {
	TagName     string
	ClassName   string
	ID          string
	TextContent string
}

// DOMEvent is an event delivered by the browser host.
type DOMEvent struct {
	Type   string
	Target *Element
}

// Fingerprint encodes the element as tag.class#id:text, omitting absent parts.
// Only the first class and the first 50 characters of text are kept.
func (e Element) Fingerprint() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(e.TagName))
	if classes := strings.Fields(e.ClassName); len(classes) > 0 {
		b.WriteByte('.')
		b.WriteString(classes[0])
	}
	if e.ID != "" {
		b.WriteByte('#')
		b.WriteString(e.ID)
	}
	if text := truncateRunes(e.TextContent, fingerprintTextLimit); text != "" {
		b.WriteByte(':')
		b.WriteString(text)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
