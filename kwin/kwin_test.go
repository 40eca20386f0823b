package kwin

import (
	"archive/zip"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/darinpp/toshy/notifier"
)

// Test bridge receiver constants
func TestConstants(t *testing.T) {
	if BridgeDestination != "org.toshy.KWinBridge" {
		t.Errorf("BridgeDestination should be org.toshy.KWinBridge, got %s", BridgeDestination)
	}
	if BridgeObjectPath != "/org/toshy/KWinBridge" {
		t.Errorf("BridgeObjectPath should be /org/toshy/KWinBridge, got %s", BridgeObjectPath)
	}
	if InstalledScriptName != "toshy-active-window-bridge" {
		t.Errorf("InstalledScriptName should be toshy-active-window-bridge, got %s", InstalledScriptName)
	}
}

// Test the generated bridge script wiring
func TestBridgeScript(t *testing.T) {
	script := BridgeScript()

	wantFragments := []string{
		`"org.toshy.KWinBridge"`,
		`"/org/toshy/KWinBridge"`,
		`"ActiveWindowChanged"`,
		`"ActiveWindowCleared"`,
		"workspace.windowActivated",
		"workspace.clientActivated",
		"resourceClass",
		"resourceName",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(script, fragment) {
			t.Errorf("bridge script missing %q", fragment)
		}
	}
}

// Test metadata generation
func TestScriptMetadata(t *testing.T) {
	data, err := ScriptMetadata()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var meta struct {
		KPackageStructure string `json:"KPackageStructure"`
		KPlugin           struct {
			Id string `json:"Id"`
		} `json:"KPlugin"`
		MainScript string `json:"X-Plasma-MainScript"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}

	if meta.KPackageStructure != "KWin/Script" {
		t.Errorf("KPackageStructure should be KWin/Script, got %s", meta.KPackageStructure)
	}
	if meta.KPlugin.Id != InstalledScriptName {
		t.Errorf("plugin id should be %s, got %s", InstalledScriptName, meta.KPlugin.Id)
	}
	if meta.MainScript != "code/main.js" {
		t.Errorf("main script should be code/main.js, got %s", meta.MainScript)
	}
}

// Test receiver presence flag mapping
func TestBridgeReceiverActiveWindowChanged(t *testing.T) {
	tests := []struct {
		name      string
		caption   string
		captionOk bool
		class     string
		classOk   bool
		resName   string
		nameOk    bool
		wantCap   *string
		wantClass *string
		wantName  *string
	}{
		{
			name:    "all present",
			caption: "Terminal", captionOk: true,
			class: "org.kde.konsole", classOk: true,
			resName: "konsole", nameOk: true,
			wantCap:   strPtr("Terminal"),
			wantClass: strPtr("org.kde.konsole"),
			wantName:  strPtr("konsole"),
		},
		{
			name:    "caption only",
			caption: "Foo", captionOk: true,
			wantCap: strPtr("Foo"),
		},
		{
			name:    "empty caption still present",
			caption: "", captionOk: true,
			class: "firefox", classOk: true,
			wantCap:   strPtr(""),
			wantClass: strPtr("firefox"),
		},
		{
			name: "nothing present",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make(chan *notifier.Window, 1)
			receiver := &bridgeReceiver{events: events}

			if dbusErr := receiver.ActiveWindowChanged(tt.caption, tt.captionOk, tt.class, tt.classOk, tt.resName, tt.nameOk); dbusErr != nil {
				t.Fatalf("unexpected dbus error: %v", dbusErr)
			}

			window := <-events
			if window == nil {
				t.Fatal("expected non-nil window")
			}
			checkAttr(t, "caption", window.Caption, tt.wantCap)
			checkAttr(t, "resourceClass", window.ResourceClass, tt.wantClass)
			checkAttr(t, "resourceName", window.ResourceName, tt.wantName)
		})
	}
}

func checkAttr(t *testing.T, field string, got, want *string) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s: expected absent, got %q", field, *got)
	case want != nil && got == nil:
		t.Errorf("%s: expected %q, got absent", field, *want)
	case want != nil && got != nil && *want != *got:
		t.Errorf("%s: expected %q, got %q", field, *want, *got)
	}
}

func strPtr(s string) *string {
	return &s
}

// Test that the cleared callback forwards a nil window
func TestBridgeReceiverActiveWindowCleared(t *testing.T) {
	events := make(chan *notifier.Window, 1)
	receiver := &bridgeReceiver{events: events}

	if dbusErr := receiver.ActiveWindowCleared(); dbusErr != nil {
		t.Fatalf("unexpected dbus error: %v", dbusErr)
	}

	if window := <-events; window != nil {
		t.Errorf("expected nil window, got %+v", window)
	}
}

// Test that a full event channel never blocks the bus callback
func TestBridgeReceiverDropsWhenFull(t *testing.T) {
	events := make(chan *notifier.Window, 1)
	receiver := &bridgeReceiver{events: events}

	receiver.ActiveWindowCleared()
	done := make(chan struct{})
	go func() {
		receiver.ActiveWindowCleared()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("emit blocked on a full event channel")
	}
}

// Test that a watcher cannot be started twice
func TestStartAlreadyWatching(t *testing.T) {
	watcher := &Watcher{watching: true}
	if err := watcher.Start(); err == nil {
		t.Error("expected error starting an already watching watcher")
	}
}

// Test .kwinscript packaging round trip
func TestPackageScript(t *testing.T) {
	dir := t.TempDir()

	pkgPath, err := PackageScript(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reader, err := zip.OpenReader(pkgPath)
	if err != nil {
		t.Fatalf("package is not a readable zip: %v", err)
	}
	defer reader.Close()

	entries := make(map[string]string)
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", file.Name, err)
		}
		entries[file.Name] = string(content)
	}

	script, ok := entries["contents/code/main.js"]
	if !ok {
		t.Fatal("package missing contents/code/main.js")
	}
	if script != BridgeScript() {
		t.Error("packaged main.js does not match the generated bridge script")
	}

	if _, ok := entries["metadata.json"]; !ok {
		t.Fatal("package missing metadata.json")
	}
}
