// Package hyprland watches window activation on Hyprland sessions through
// the compositor's event socket. The activewindow event carries the window
// class and title; Hyprland has no separate instance name, so the
// resourceName attribute is always absent on this host.
package hyprland

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/thiagokokada/hyprland-go/event"
	"github.com/thiagokokada/hyprland-go/helpers"

	"github.com/darinpp/toshy/notifier"
)

const eventBuffer = 16

// Watcher delivers activation events from a Hyprland compositor.
type Watcher struct {
	client   *event.EventClient
	events   chan *notifier.Window
	watching bool

	DebugMode bool
}

// NewWatcher connects to the Hyprland event socket of the current session.
func NewWatcher() (*Watcher, error) {
	if !Available() {
		return nil, fmt.Errorf("HYPRLAND_INSTANCE_SIGNATURE not set\n\nTroubleshooting:\n  1. Run inside a Hyprland session\n  2. Use the kwin or x11 backend on other desktops")
	}

	socket, err := helpers.GetSocket(helpers.EventSocket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Hyprland event socket: %v", err)
	}
	client, err := event.NewClient(socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Hyprland event socket: %v", err)
	}

	return &Watcher{
		client: client,
		events: make(chan *notifier.Window, eventBuffer),
	}, nil
}

// debugLog prints debug messages if debug mode is enabled
func (w *Watcher) debugLog(format string, args ...interface{}) {
	if w.DebugMode {
		color.Cyan("[HYPRLAND DEBUG] "+format, args...)
	}
}

// Start subscribes to activewindow events. Starting twice is an error; the
// event stream is subscribed exactly once.
func (w *Watcher) Start() error {
	if w.watching {
		return fmt.Errorf("hyprland watcher already started")
	}
	w.watching = true

	handler := &activationHandler{events: w.events}
	go func() {
		if err := w.client.Subscribe(context.Background(), handler, event.EventActiveWindow); err != nil {
			w.debugLog("Event subscription ended: %v", err)
		}
	}()
	return nil
}

// Events returns the activation stream. A nil window means Hyprland
// reported that no window holds focus.
func (w *Watcher) Events() <-chan *notifier.Window {
	return w.events
}

// Close drops the event socket, which ends the subscription goroutine.
func (w *Watcher) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// activationHandler receives decoded events from the subscription loop.
type activationHandler struct {
	event.DefaultEventHandler
	events chan<- *notifier.Window
}

// ActiveWindow maps one activewindow event to a window handle. Hyprland
// signals "no focused window" with an empty class and title pair.
func (h *activationHandler) ActiveWindow(w event.ActiveWindow) {
	h.emit(windowFromEvent(w.Name, w.Title))
}

func (h *activationHandler) emit(window *notifier.Window) {
	select {
	case h.events <- window:
	default:
	}
}

// windowFromEvent builds a handle from the two event fields. Both fields
// are always transmitted, so a present empty value only occurs in the
// no-window marker case.
func windowFromEvent(class, title string) *notifier.Window {
	if class == "" && title == "" {
		return nil
	}
	return &notifier.Window{
		Caption:       &title,
		ResourceClass: &class,
	}
}

// Current reads the focused window once via hyprctl.
func Current() (*notifier.Window, error) {
	out, err := exec.Command("hyprctl", "activewindow", "-j").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run hyprctl: %v\n\nTroubleshooting:\n  1. Verify hyprctl is in PATH\n  2. Run inside a Hyprland session", err)
	}

	// Older hyprctl prints "Invalid" instead of JSON when nothing is
	// focused.
	if strings.HasPrefix(strings.TrimSpace(string(out)), "Invalid") {
		return nil, nil
	}

	var win struct {
		Class string `json:"class"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(out, &win); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl output: %v", err)
	}
	return windowFromEvent(win.Class, win.Title), nil
}

// Available reports whether this process runs inside a Hyprland session.
func Available() bool {
	return os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
}
