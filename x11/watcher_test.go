package x11

import (
	"testing"
)

// Test WM_CLASS parsing
func TestParseWmClass(t *testing.T) {
	tests := []struct {
		name         string
		value        []byte
		wantInstance string
		wantClass    string
	}{
		{
			name:         "instance and class",
			value:        []byte("konsole\x00org.kde.konsole\x00"),
			wantInstance: "konsole",
			wantClass:    "org.kde.konsole",
		},
		{
			name:         "firefox style",
			value:        []byte("Navigator\x00firefox\x00"),
			wantInstance: "Navigator",
			wantClass:    "firefox",
		},
		{
			name:         "instance only",
			value:        []byte("xterm"),
			wantInstance: "xterm",
			wantClass:    "",
		},
		{
			name:         "empty value",
			value:        []byte{},
			wantInstance: "",
			wantClass:    "",
		},
		{
			name:         "empty instance",
			value:        []byte("\x00SomeClass\x00"),
			wantInstance: "",
			wantClass:    "SomeClass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance, class := parseWmClass(tt.value)
			if instance != tt.wantInstance {
				t.Errorf("instance: expected %q, got %q", tt.wantInstance, instance)
			}
			if class != tt.wantClass {
				t.Errorf("class: expected %q, got %q", tt.wantClass, class)
			}
		})
	}
}

// Test window id byte decoding
func TestDecodeWindowID(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
		want  uint32
	}{
		{
			name:  "zero",
			value: []byte{0, 0, 0, 0},
			want:  0,
		},
		{
			name:  "little endian order",
			value: []byte{0x04, 0x03, 0x02, 0x01},
			want:  0x01020304,
		},
		{
			name:  "typical window id",
			value: []byte{0x00, 0x00, 0xa0, 0x02},
			want:  0x02a00000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeWindowID(tt.value); got != tt.want {
				t.Errorf("expected 0x%x, got 0x%x", tt.want, got)
			}
		})
	}
}

// Test that a watcher cannot be started twice
func TestStartAlreadyWatching(t *testing.T) {
	watcher := &Watcher{watching: true}
	if err := watcher.Start(); err == nil {
		t.Error("expected error starting an already watching watcher")
	}
}
