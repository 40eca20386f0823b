// Package kwin watches window activation on KDE Plasma sessions. KWin does
// not broadcast activation over D-Bus, so the watcher injects a small KWin
// script that connects to the compositor's activation signal and relays
// each event to a receiver object this process exports on the session bus.
//
// Example usage:
//
//	watcher, err := kwin.NewWatcher()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := watcher.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer watcher.Close()
//
//	for window := range watcher.Events() {
//		notifier.OnWindowActivated(window)
//	}
package kwin

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/darinpp/toshy/internal/common"
	"github.com/darinpp/toshy/notifier"
)

const eventBuffer = 16

// Watcher delivers activation events from a KWin compositor.
type Watcher struct {
	conn       *dbus.Conn
	events     chan *notifier.Window
	scriptName string
	scriptPath string
	scriptID   int32
	loaded     bool
	watching   bool

	// Resident skips runtime script injection; use it when the bridge
	// script was installed persistently with InstallScript and KWin loads
	// it on its own.
	Resident  bool
	DebugMode bool
}

// NewWatcher connects to the session bus and verifies KWin is present.
func NewWatcher() (*Watcher, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %v", err)
	}

	present, err := serviceOnBus(conn, common.KwinDestination)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !present {
		conn.Close()
		return nil, fmt.Errorf("KWin service not found on D-Bus\n\nTroubleshooting:\n  1. Verify you're running a KDE Plasma session\n  2. Check the compositor is up: qdbus org.kde.KWin /KWin\n  3. On other desktops use the x11 or hyprland backend instead")
	}

	return &Watcher{
		conn:   conn,
		events: make(chan *notifier.Window, eventBuffer),
	}, nil
}

// serviceOnBus reports whether name is currently owned on the bus.
func serviceOnBus(conn *dbus.Conn, name string) (bool, error) {
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false, fmt.Errorf("failed to list D-Bus names: %v", err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// debugLog prints debug messages if debug mode is enabled
func (w *Watcher) debugLog(format string, args ...interface{}) {
	if w.DebugMode {
		color.Cyan("[KWIN DEBUG] "+format, args...)
	}
}

// Start claims the bridge receiver name, exports the callback object and,
// unless the watcher is Resident, injects the bridge script into KWin.
// Starting an already watching watcher is an error; the activation stream
// is subscribed exactly once.
func (w *Watcher) Start() error {
	if w.watching {
		return fmt.Errorf("kwin watcher already started")
	}

	reply, err := w.conn.RequestName(BridgeDestination, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bridge name %s: %v", BridgeDestination, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bridge name %s is already owned\n\nAnother watcher instance is probably running. Stop it first, or check:\n  qdbus %s", BridgeDestination, BridgeDestination)
	}

	receiver := &bridgeReceiver{events: w.events}
	if err := w.conn.Export(receiver, dbus.ObjectPath(BridgeObjectPath), BridgeInterface); err != nil {
		return fmt.Errorf("failed to export bridge receiver: %v", err)
	}
	w.debugLog("Bridge receiver exported at %s", BridgeObjectPath)

	if !w.Resident {
		if err := w.injectScript(); err != nil {
			return err
		}
	}

	w.watching = true
	return nil
}

// injectScript writes the bridge script to a temp file and loads it
// through the KWin scripting interface. The plugin name carries a random
// suffix so a leftover load from a crashed run cannot block this one.
func (w *Watcher) injectScript() error {
	file, err := os.CreateTemp("", "toshy-bridge-*.js")
	if err != nil {
		return fmt.Errorf("failed to create bridge script file: %v", err)
	}
	if _, err := file.WriteString(BridgeScript()); err != nil {
		file.Close()
		os.Remove(file.Name())
		return fmt.Errorf("failed to write bridge script: %v", err)
	}
	file.Close()

	w.scriptPath = file.Name()
	w.scriptName = fmt.Sprintf("toshy-bridge-%s", uuid.New().String())

	scripting := w.conn.Object(common.KwinDestination, dbus.ObjectPath(common.ScriptingObjectPath))

	call := scripting.Call(common.ScriptingLoad, 0, w.scriptPath, w.scriptName)
	if call.Err != nil {
		os.Remove(w.scriptPath)
		return fmt.Errorf("failed to load KWin script: %v\n\nTroubleshooting:\n  1. Check the scripting interface: qdbus org.kde.KWin /Scripting\n  2. Some distributions disable KWin scripting; see the kwinrc [Scripting] group", call.Err)
	}
	if err := call.Store(&w.scriptID); err != nil {
		os.Remove(w.scriptPath)
		return fmt.Errorf("failed to parse loadScript response: %v", err)
	}

	if call := scripting.Call(common.ScriptingStart, 0); call.Err != nil {
		os.Remove(w.scriptPath)
		return fmt.Errorf("failed to start KWin scripting engine: %v", call.Err)
	}

	w.loaded = true
	w.debugLog("Bridge script %s loaded (id %d)", w.scriptName, w.scriptID)
	return nil
}

// Events returns the activation stream. A nil window means KWin reported
// an activation with no window, e.g. a task switcher overlay.
func (w *Watcher) Events() <-chan *notifier.Window {
	return w.events
}

// Close unloads the injected script and releases the bus connection.
func (w *Watcher) Close() error {
	if w.loaded {
		scripting := w.conn.Object(common.KwinDestination, dbus.ObjectPath(common.ScriptingObjectPath))
		if call := scripting.Call(common.ScriptingUnload, 0, w.scriptName); call.Err != nil {
			w.debugLog("Failed to unload bridge script %s: %v", w.scriptName, call.Err)
		}
		os.Remove(w.scriptPath)
		w.loaded = false
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// bridgeReceiver is the D-Bus object the KWin script calls back into.
type bridgeReceiver struct {
	events chan<- *notifier.Window
}

// ActiveWindowChanged receives one activation. Each attribute arrives with
// a presence flag; an unset flag means the window object had no such
// property, which is forwarded as an absent attribute.
func (r *bridgeReceiver) ActiveWindowChanged(caption string, captionSet bool, resourceClass string, classSet bool, resourceName string, nameSet bool) *dbus.Error {
	window := &notifier.Window{}
	if captionSet {
		window.Caption = &caption
	}
	if classSet {
		window.ResourceClass = &resourceClass
	}
	if nameSet {
		window.ResourceName = &resourceName
	}
	r.emit(window)
	return nil
}

// ActiveWindowCleared receives the no-window activation case.
func (r *bridgeReceiver) ActiveWindowCleared() *dbus.Error {
	r.emit(nil)
	return nil
}

func (r *bridgeReceiver) emit(window *notifier.Window) {
	select {
	case r.events <- window:
	default:
	}
}

// Available reports whether a KWin compositor owns its service name on the
// session bus. Used for backend auto-detection.
func Available() bool {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false
	}
	defer conn.Close()

	present, err := serviceOnBus(conn, common.KwinDestination)
	return err == nil && present
}
