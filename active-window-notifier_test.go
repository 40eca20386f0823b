//go:build !ignore_app
// +build !ignore_app

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darinpp/toshy/internal/common"
)

func testActivation() common.Activation {
	return common.Activation{
		EventID:       "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
		OccurredAt:    time.Now(),
		Backend:       backendKwin,
		Caption:       "Terminal",
		ResourceClass: "org.kde.konsole",
		ResourceName:  "UNDEF",
	}
}

// Test constants
func TestConstants(t *testing.T) {
	if defaultPollInterval != 1000*time.Millisecond {
		t.Errorf("defaultPollInterval should be 1000ms, got %v", defaultPollInterval)
	}
	if defaultIgnorePath != ".toshy-ignore" {
		t.Errorf("defaultIgnorePath should be .toshy-ignore, got %s", defaultIgnorePath)
	}
	if backendAuto != "auto" || backendKwin != "kwin" || backendX11 != "x11" || backendHyprland != "hyprland" {
		t.Error("backend names changed; they are part of the CLI surface")
	}
	if journalNone != "none" || journalSqlite != "sqlite" || journalPostgres != "postgres" {
		t.Error("journal names changed; they are part of the CLI surface")
	}
}

// Test validateConfiguration
func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		backend    string
		journal    string
		interval   time.Duration
		hasDisplay bool
		wantErr    bool
	}{
		{
			name:       "valid default config",
			backend:    backendAuto,
			journal:    journalNone,
			interval:   200 * time.Millisecond,
			hasDisplay: true,
			wantErr:    false,
		},
		{
			name:       "valid kwin with sqlite journal",
			backend:    backendKwin,
			journal:    journalSqlite,
			interval:   defaultPollInterval,
			hasDisplay: true,
			wantErr:    false,
		},
		{
			name:       "unknown backend",
			backend:    "sway",
			journal:    journalNone,
			interval:   defaultPollInterval,
			hasDisplay: true,
			wantErr:    true,
		},
		{
			name:       "unknown journal",
			backend:    backendAuto,
			journal:    "redis",
			interval:   defaultPollInterval,
			hasDisplay: true,
			wantErr:    true,
		},
		{
			name:       "poll interval too short",
			backend:    backendX11,
			journal:    journalNone,
			interval:   10 * time.Millisecond,
			hasDisplay: true,
			wantErr:    true,
		},
		{
			name:       "no graphical display",
			backend:    backendAuto,
			journal:    journalNone,
			interval:   defaultPollInterval,
			hasDisplay: false,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.hasDisplay {
				t.Setenv("DISPLAY", ":0")
			} else {
				t.Setenv("DISPLAY", "")
				t.Setenv("WAYLAND_DISPLAY", "")
			}

			err := validateConfiguration(tt.backend, tt.journal, tt.interval)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// Test formatWindowOutput
func TestFormatWindowOutput(t *testing.T) {
	tests := []struct {
		name          string
		caption       string
		resourceClass string
		expected      string
	}{
		{
			name:          "with resource class",
			caption:       "README.md - VSCode",
			resourceClass: "code",
			expected:      "Active Window: README.md - VSCode (code)",
		},
		{
			name:          "undefined resource class",
			caption:       "Firefox",
			resourceClass: "UNDEF",
			expected:      "Active Window: Firefox",
		},
		{
			name:          "empty resource class",
			caption:       "Firefox",
			resourceClass: "",
			expected:      "Active Window: Firefox",
		},
		{
			name:          "empty caption",
			caption:       "",
			resourceClass: "krunner",
			expected:      "Active Window:  (krunner)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatWindowOutput(tt.caption, tt.resourceClass)
			if result != tt.expected {
				t.Errorf("formatWindowOutput() = %q, want %q", result, tt.expected)
			}
		})
	}
}

// Test ignore list loading
func TestLoadIgnoreList(t *testing.T) {
	t.Run("missing file is empty, not an error", func(t *testing.T) {
		ignored, err := loadIgnoreList(filepath.Join(t.TempDir(), "does-not-exist"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ignored) != 0 {
			t.Errorf("expected empty ignore list, got %d entries", len(ignored))
		}
	})

	t.Run("skips comments and blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".toshy-ignore")
		content := "# Toshy Ignored Applications\n# One resourceClass per line\n\norg.kde.konsole\n  code  \n\n# trailing comment\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		ignored, err := loadIgnoreList(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ignored) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(ignored))
		}
		if !ignored["org.kde.konsole"] {
			t.Error("expected org.kde.konsole to be ignored")
		}
		if !ignored["code"] {
			t.Error("expected whitespace-trimmed code to be ignored")
		}
		if ignored["# Toshy Ignored Applications"] {
			t.Error("comment line leaked into the ignore list")
		}
	})
}

// Test backend auto-detection for the hyprland branch, which is decided
// purely by the environment and therefore deterministic in tests.
func TestDetectBackendHyprland(t *testing.T) {
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "v2_1700000000_123456")

	backend, err := detectBackend()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend != backendHyprland {
		t.Errorf("expected %s, got %s", backendHyprland, backend)
	}
}

// Test journal selection
func TestOpenJournal(t *testing.T) {
	t.Run("none yields no client", func(t *testing.T) {
		journal, err := openJournal(journalNone, "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if journal != nil {
			t.Error("expected nil journal for kind none")
		}
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		if _, err := openJournal("redis", "", ""); err == nil {
			t.Error("expected error for unknown journal kind")
		}
	})

	t.Run("sqlite journal round-trips", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "activations.db")
		journal, err := openJournal(journalSqlite, path, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer journal.Close()

		activation := testActivation()
		if err := journal.SubmitActivation(activation); err != nil {
			t.Fatalf("SubmitActivation() failed: %v", err)
		}

		recent, err := journal.GetRecent(5)
		if err != nil {
			t.Fatalf("GetRecent() failed: %v", err)
		}
		if len(recent) != 1 {
			t.Fatalf("expected 1 activation, got %d", len(recent))
		}
		if recent[0].EventID != activation.EventID {
			t.Errorf("expected event ID %s, got %s", activation.EventID, recent[0].EventID)
		}
		if recent[0].ResourceName != "UNDEF" {
			t.Errorf("expected resource name UNDEF, got %s", recent[0].ResourceName)
		}
	})
}
