package common

import "time"

// D-Bus configuration shared between the notifier and the daemon tooling.
// The Toshy addressing is the wire contract: the receiving service owns
// the org.toshy.Toshy name and expects NotifyActiveWindow(caption,
// resourceClass, resourceName) as three positional strings.
const (
	DbusDestination = "org.toshy.Toshy"
	DbusObjectPath  = "/org/toshy/Toshy"
	DbusInterface   = "org.toshy.Toshy"
	DbusMethod      = DbusInterface + ".NotifyActiveWindow"

	// KWin D-Bus configuration (host side, KDE sessions only)
	KwinDestination     = "org.kde.KWin"
	KwinObjectPath      = "/KWin"
	KwinInterface       = "org.kde.KWin"
	KwinReconfigure     = KwinInterface + ".reconfigure"
	ScriptingObjectPath = "/Scripting"
	ScriptingInterface  = "org.kde.kwin.Scripting"
	ScriptingLoad       = ScriptingInterface + ".loadScript"
	ScriptingStart      = ScriptingInterface + ".start"
	ScriptingUnload     = ScriptingInterface + ".unloadScript"
)

// AttrUndefined is substituted for any window attribute the host did not
// supply. An attribute present as an empty string is forwarded as "".
const AttrUndefined = "UNDEF"

// Activation is one dispatched notification, as sent on the wire (after
// AttrUndefined substitution). Used by the journal and webhook sinks.
type Activation struct {
	EventID       string    `json:"event_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Backend       string    `json:"backend"`
	Caption       string    `json:"caption"`
	ResourceClass string    `json:"resource_class"`
	ResourceName  string    `json:"resource_name"`
}
