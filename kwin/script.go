package kwin

import (
	"encoding/json"
	"fmt"
)

// Bridge receiver D-Bus configuration. The injected KWin script relays
// activation events here; the daemon owns this name while watching.
const (
	BridgeDestination = "org.toshy.KWinBridge"
	BridgeObjectPath  = "/org/toshy/KWinBridge"
	BridgeInterface   = "org.toshy.KWinBridge"
)

// InstalledScriptName is the plugin id used for the persistent package
// installed via kpackagetool. Transient runtime injections use a random
// name instead so a stale load can never collide.
const InstalledScriptName = "toshy-active-window-bridge"

// bridgeScriptTemplate is the KWin script source. It forwards the three
// window attributes together with per-attribute presence flags, so the
// receiving side keeps the distinction between an absent attribute and an
// empty string. KWin 6 renamed clientActivated to windowActivated; both
// spellings are handled so the same script runs on Plasma 5 and 6.
const bridgeScriptTemplate = `function notifyActiveWindow(window) {
    if (!window) {
        callDBus(%[1]q, %[2]q, %[3]q, "ActiveWindowCleared");
        return;
    }
    var hasCaption = window.caption !== undefined && window.caption !== null;
    var hasClass = window.resourceClass !== undefined && window.resourceClass !== null;
    var hasName = window.resourceName !== undefined && window.resourceName !== null;
    callDBus(%[1]q, %[2]q, %[3]q, "ActiveWindowChanged",
        hasCaption ? String(window.caption) : "", hasCaption,
        hasClass ? String(window.resourceClass) : "", hasClass,
        hasName ? String(window.resourceName) : "", hasName);
}

if (workspace.windowActivated !== undefined) {
    workspace.windowActivated.connect(notifyActiveWindow);
} else {
    workspace.clientActivated.connect(notifyActiveWindow);
}

notifyActiveWindow(workspace.activeWindow !== undefined ? workspace.activeWindow : workspace.activeClient);
`

// BridgeScript returns the KWin script source targeting the bridge
// receiver. The trailing direct call primes the receiver with the window
// that is already active when the script loads.
func BridgeScript() string {
	return fmt.Sprintf(bridgeScriptTemplate, BridgeDestination, BridgeObjectPath, BridgeInterface)
}

type kpluginInfo struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Icon        string `json:"Icon"`
	Id          string `json:"Id"`
	Version     string `json:"Version"`
}

type scriptMetadata struct {
	KPackageStructure string      `json:"KPackageStructure"`
	KPlugin           kpluginInfo `json:"KPlugin"`
	PlasmaAPI         string      `json:"X-Plasma-API"`
	MainScript        string      `json:"X-Plasma-MainScript"`
}

// ScriptMetadata returns the metadata.json content for the packaged
// .kwinscript.
func ScriptMetadata() ([]byte, error) {
	meta := scriptMetadata{
		KPackageStructure: "KWin/Script",
		KPlugin: kpluginInfo{
			Name:        "Toshy Active Window Bridge",
			Description: "Relays window activation events to the Toshy active window notifier",
			Icon:        "preferences-system-windows",
			Id:          InstalledScriptName,
			Version:     "1.0",
		},
		PlasmaAPI:  "javascript",
		MainScript: "code/main.js",
	}
	return json.MarshalIndent(meta, "", "    ")
}
