// Package notifier forwards window activation events to the Toshy D-Bus
// service. Each activation becomes a single one-way call to
// org.toshy.Toshy NotifyActiveWindow(caption, resourceClass, resourceName);
// no response is awaited and a missing or unreachable receiver is ignored.
//
// Example usage:
//
//	n, err := notifier.NewNotifier()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer n.Close()
//
//	caption := "Terminal"
//	class := "org.kde.konsole"
//	n.OnWindowActivated(&notifier.Window{
//		Caption:       &caption,
//		ResourceClass: &class,
//	})
package notifier

import (
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/godbus/dbus/v5"

	"github.com/darinpp/toshy/internal/common"
)

// Window is the handle delivered by a host backend for one activation
// event. Each attribute is independently optional; nil means the host did
// not supply it, which is distinct from a present empty string.
type Window struct {
	Caption       *string
	ResourceClass *string
	ResourceName  *string
}

// Fields resolves the three attributes in wire order, substituting
// common.AttrUndefined for any that is absent.
func (w *Window) Fields() (caption, resourceClass, resourceName string) {
	return attrOrUndefined(w.Caption),
		attrOrUndefined(w.ResourceClass),
		attrOrUndefined(w.ResourceName)
}

func attrOrUndefined(attr *string) string {
	if attr == nil {
		return common.AttrUndefined
	}
	return *attr
}

// busCaller is the slice of dbus.BusObject the notifier uses. Narrowed so
// tests can record dispatched calls.
type busCaller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier dispatches activation notifications to the Toshy service.
type Notifier struct {
	conn      *dbus.Conn
	obj       busCaller
	DebugMode bool
}

// NewNotifier connects to the session bus and binds the Toshy service
// object. The receiving service does not have to be running; calls are
// dispatched without reply expectation either way.
func NewNotifier() (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %v\n\nTroubleshooting:\n  1. Verify a session bus is running: echo $DBUS_SESSION_BUS_ADDRESS\n  2. Run inside a desktop session, not a bare TTY or ssh shell", err)
	}

	return &Notifier{
		conn: conn,
		obj:  conn.Object(common.DbusDestination, common.DbusObjectPath),
	}, nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// debugLog prints debug messages if debug mode is enabled
func (n *Notifier) debugLog(format string, args ...interface{}) {
	if n.DebugMode {
		color.Cyan("[NOTIFIER DEBUG] "+format, args...)
	}
}

// OnWindowActivated handles one activation event. A nil window is benign
// (a task switcher or similar overlay holds focus) and produces a single
// log line and no call. Otherwise exactly one NotifyActiveWindow call is
// dispatched, fire-and-forget, with the resolved attributes in the order
// caption, resourceClass, resourceName. Consecutive identical windows are
// not deduplicated.
func (n *Notifier) OnWindowActivated(window *Window) {
	if window == nil {
		log.Printf("the client object is null")
		return
	}

	caption, resourceClass, resourceName := window.Fields()

	n.obj.Call(common.DbusMethod, dbus.FlagNoReplyExpected, caption, resourceClass, resourceName)
	n.debugLog("dispatched NotifyActiveWindow(%q, %q, %q)", caption, resourceClass, resourceName)
}
