//go:build js && wasm

package browser

import (
	"net/url"
	"syscall/js"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

// JSWindow is the Window of the hosting browser tab.
type JSWindow struct {
	win js.Value
	doc js.Value
}

func NewJSWindow() *JSWindow {
	win := js.Global()
	return &JSWindow{win: win, doc: win.Get("document")}
}

func (w *JSWindow) Location() *url.URL {
	if !w.doc.Truthy() {
		return nil
	}
	u, err := url.Parse(w.win.Get("location").Get("href").String())
	if err != nil {
		return nil
	}
	return u
}

func (w *JSWindow) Screen() (int, int, bool) {
	screen := w.win.Get("screen")
	if !screen.Truthy() {
		return 0, 0, false
	}
	width, height := screen.Get("width").Int(), screen.Get("height").Int()
	return width, height, width > 0 && height > 0
}

func (w *JSWindow) Scroll() domain.ScrollMetrics {
	root := w.doc.Get("documentElement")
	return domain.ScrollMetrics{
		Top:            w.win.Get("scrollY").Float(),
		DocumentHeight: root.Get("scrollHeight").Float(),
		ViewportHeight: w.win.Get("innerHeight").Float(),
	}
}

func (w *JSWindow) VisibilityState() string {
	return w.doc.Get("visibilityState").String()
}

func (w *JSWindow) Now() time.Time {
	return time.Now()
}

// AddEventListener attaches click and visibilitychange to the document and
// everything else to the window.
func (w *JSWindow) AddEventListener(event string, fn ports.Listener, opts ports.ListenerOptions) func() {
	target := w.win
	if event == domain.DOMClick || event == domain.DOMVisibilityChange {
		target = w.doc
	}

	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		ev := domain.DOMEvent{Type: event}
		if len(args) > 0 {
			ev.Target = element(args[0].Get("target"))
		}
		fn(ev)
		return nil
	})
	target.Call("addEventListener", event, cb, map[string]interface{}{
		"capture": opts.Capture,
		"passive": opts.Passive,
	})

	return func() {
		target.Call("removeEventListener", event, cb, map[string]interface{}{"capture": opts.Capture})
		cb.Release()
	}
}

func (w *JSWindow) SetInterval(d time.Duration, fn func()) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		fn()
		return nil
	})
	id := w.win.Call("setInterval", cb, d.Milliseconds())
	return func() {
		w.win.Call("clearInterval", id)
		cb.Release()
	}
}

func element(v js.Value) *domain.Element {
	if v.Type() != js.TypeObject || !v.Get("tagName").Truthy() {
		return nil
	}
	className := v.Get("className")
	if className.Type() == js.TypeObject {
		// SVG elements expose an SVGAnimatedString
		className = className.Get("baseVal")
	}
	return &domain.Element{
		TagName:     stringOf(v.Get("tagName")),
		ClassName:   stringOf(className),
		ID:          stringOf(v.Get("id")),
		TextContent: stringOf(v.Get("textContent")),
	}
}

func stringOf(v js.Value) string {
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

// JSBeacon delivers through navigator.sendBeacon, which the browser completes
// after the page is gone.
type JSBeacon struct {
	navigator js.Value
}

func NewJSBeacon() *JSBeacon {
	return &JSBeacon{navigator: js.Global().Get("navigator")}
}

func (b *JSBeacon) SendBeacon(url string, body []byte) bool {
	if !b.navigator.Truthy() || !b.navigator.Get("sendBeacon").Truthy() {
		return false
	}
	return b.navigator.Call("sendBeacon", url, string(body)).Bool()
}

var (
	_ ports.Window = (*JSWindow)(nil)
	_ ports.Beacon = (*JSBeacon)(nil)
)
