//go:build js && wasm

// Command wasm runs the tracker inside a browser tab. The collector base URL is
// read from globalThis.VISITOR_TELEMETRY_URL and defaults to the page origin.
package main

import (
	"log/slog"
	"syscall/js"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/browser"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/adapters/emitter"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/services"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

// locationPoll catches pushState navigations, which fire no event.
const locationPoll = 500 * time.Millisecond

func main() {
	win := browser.NewJSWindow()

	level := slog.LevelInfo
	if js.Global().Get("VISITOR_TELEMETRY_DEBUG").Truthy() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(consoleWriter{}, &slog.HandlerOptions{Level: level}))

	em := emitter.NewHTTPEmitter(collectorURL(),
		emitter.WithBeacon(browser.NewJSBeacon()),
		emitter.WithScreen(win.Screen),
		emitter.WithLogger(logger))
	tracker := services.NewTracker(win, em, services.WithLogger(logger))

	tracker.Navigate()
	win.AddEventListener("popstate", func(domain.DOMEvent) { tracker.Navigate() }, ports.ListenerOptions{})
	win.SetInterval(locationPoll, tracker.Navigate)

	select {}
}

func collectorURL() string {
	if v := js.Global().Get("VISITOR_TELEMETRY_URL"); v.Type() == js.TypeString && v.String() != "" {
		return v.String()
	}
	return js.Global().Get("location").Get("origin").String()
}

type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	js.Global().Get("console").Call("debug", string(p))
	return len(p), nil
}
