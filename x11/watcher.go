// Package x11 watches window activation on X11 sessions by polling the
// EWMH _NET_ACTIVE_WINDOW property on the root window. Attribute mapping:
// _NET_WM_NAME (fallback WM_NAME) supplies the caption, WM_CLASS supplies
// resourceName (instance) and resourceClass (class). A property the window
// does not carry is reported as an absent attribute.
package x11

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/darinpp/toshy/notifier"
)

const (
	eventBuffer    = 16
	propertyMaxLen = 256 // in 32-bit units
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"UTF8_STRING",
	"WM_NAME",
	"WM_CLASS",
}

// Watcher delivers activation events from an X server.
type Watcher struct {
	conn     *xgb.Conn
	root     xproto.Window
	atoms    map[string]xproto.Atom
	events   chan *notifier.Window
	interval time.Duration
	stop     chan struct{}
	watching bool

	DebugMode bool
}

// NewWatcher connects to the X server named by DISPLAY and interns the
// atoms the poll loop needs.
func NewWatcher(interval time.Duration) (*Watcher, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %v\n\nTroubleshooting:\n  1. Check DISPLAY is set: echo $DISPLAY\n  2. On a Wayland session prefer the kwin or hyprland backend", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root

	atoms := make(map[string]xproto.Atom)
	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %v", name, err)
		}
		atoms[name] = reply.Atom
	}

	return &Watcher{
		conn:     conn,
		root:     root,
		atoms:    atoms,
		events:   make(chan *notifier.Window, eventBuffer),
		interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

// debugLog prints debug messages if debug mode is enabled
func (w *Watcher) debugLog(format string, args ...interface{}) {
	if w.DebugMode {
		color.Cyan("[X11 DEBUG] "+format, args...)
	}
}

// Start launches the poll loop. The current window is emitted immediately,
// then one event per active window change. Starting twice is an error.
func (w *Watcher) Start() error {
	if w.watching {
		return fmt.Errorf("x11 watcher already started")
	}
	w.watching = true

	go w.poll()
	return nil
}

func (w *Watcher) poll() {
	var last xproto.Window
	var primed bool

	if active, err := w.activeWindow(); err == nil {
		last = active
		primed = true
		w.emit(w.snapshot(active))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			active, err := w.activeWindow()
			if err != nil {
				w.debugLog("Failed to read active window: %v", err)
				continue
			}
			if primed && active == last {
				continue
			}
			last = active
			primed = true
			w.emit(w.snapshot(active))
		}
	}
}

func (w *Watcher) emit(window *notifier.Window) {
	select {
	case w.events <- window:
	default:
	}
}

// Events returns the activation stream. A nil window means no window holds
// focus (active window id 0).
func (w *Watcher) Events() <-chan *notifier.Window {
	return w.events
}

// Current reads the active window once without starting the poll loop.
func (w *Watcher) Current() (*notifier.Window, error) {
	active, err := w.activeWindow()
	if err != nil {
		return nil, err
	}
	return w.snapshot(active), nil
}

// Close stops the poll loop and drops the X connection.
func (w *Watcher) Close() error {
	if w.watching {
		close(w.stop)
		w.watching = false
	}
	if w.conn != nil {
		w.conn.Close()
	}
	return nil
}

// activeWindow reads _NET_ACTIVE_WINDOW from the root window. Id 0 means
// no window is active.
func (w *Watcher) activeWindow() (xproto.Window, error) {
	reply, err := xproto.GetProperty(w.conn, false, w.root, w.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 0, 1).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get _NET_ACTIVE_WINDOW: %v\n\nTroubleshooting:\n  1. Verify the window manager is EWMH compliant: xprop -root _NET_ACTIVE_WINDOW\n  2. Check the session is really X11: echo $XDG_SESSION_TYPE", err)
	}
	if len(reply.Value) < 4 {
		return 0, nil
	}
	return xproto.Window(decodeWindowID(reply.Value)), nil
}

// decodeWindowID parses a 32-bit window id from X property bytes.
func decodeWindowID(value []byte) uint32 {
	return uint32(value[0]) | uint32(value[1])<<8 | uint32(value[2])<<16 | uint32(value[3])<<24
}

// snapshot reads the three attributes off one window. Window id 0 maps to
// a nil handle.
func (w *Watcher) snapshot(window xproto.Window) *notifier.Window {
	if window == 0 {
		return nil
	}

	result := &notifier.Window{}
	if caption, ok := w.windowCaption(window); ok {
		result.Caption = &caption
	}
	if instance, class, ok := w.windowClass(window); ok {
		result.ResourceName = &instance
		result.ResourceClass = &class
	}
	return result
}

// windowCaption reads _NET_WM_NAME, falling back to WM_NAME. A reply with
// format 0 means the property does not exist on the window; an existing
// empty property is a present empty caption.
func (w *Watcher) windowCaption(window xproto.Window) (string, bool) {
	reply, err := xproto.GetProperty(w.conn, false, window, w.atoms["_NET_WM_NAME"], w.atoms["UTF8_STRING"], 0, propertyMaxLen).Reply()
	if err == nil && reply.Format != 0 {
		return string(reply.Value), true
	}

	reply, err = xproto.GetProperty(w.conn, false, window, w.atoms["WM_NAME"], xproto.AtomString, 0, propertyMaxLen).Reply()
	if err == nil && reply.Format != 0 {
		return string(reply.Value), true
	}
	return "", false
}

// windowClass reads WM_CLASS, which carries the instance and class names
// as two NUL-terminated strings.
func (w *Watcher) windowClass(window xproto.Window) (instance, class string, ok bool) {
	reply, err := xproto.GetProperty(w.conn, false, window, w.atoms["WM_CLASS"], xproto.AtomString, 0, propertyMaxLen).Reply()
	if err != nil || reply.Format == 0 {
		return "", "", false
	}
	instance, class = parseWmClass(reply.Value)
	return instance, class, true
}

// parseWmClass splits a WM_CLASS value into its instance and class parts.
func parseWmClass(value []byte) (instance, class string) {
	parts := strings.Split(string(value), "\x00")
	if len(parts) > 0 {
		instance = parts[0]
	}
	if len(parts) > 1 {
		class = parts[1]
	}
	return instance, class
}

// Available reports whether an X display is configured for this session.
func Available() bool {
	return os.Getenv("DISPLAY") != ""
}
