package postgres

import (
	"testing"
	"time"

	"github.com/darinpp/toshy/internal/common"
)

// TestValidateActivation tests activation validation logic
func TestValidateActivation(t *testing.T) {
	tests := []struct {
		name       string
		activation common.Activation
		wantErr    bool
	}{
		{
			name: "valid activation",
			activation: common.Activation{
				EventID:       "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
				OccurredAt:    time.Now(),
				Backend:       "kwin",
				Caption:       "Terminal",
				ResourceClass: "org.kde.konsole",
				ResourceName:  "konsole",
			},
			wantErr: false,
		},
		{
			name: "missing event id",
			activation: common.Activation{
				OccurredAt: time.Now(),
				Backend:    "kwin",
			},
			wantErr: true,
		},
		{
			name: "missing timestamp",
			activation: common.Activation{
				EventID: "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
				Backend: "kwin",
			},
			wantErr: true,
		},
		{
			name: "missing backend",
			activation: common.Activation{
				EventID:    "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
				OccurredAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "UNDEF attributes are storable",
			activation: common.Activation{
				EventID:       "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
				OccurredAt:    time.Now(),
				Backend:       "x11",
				Caption:       "UNDEF",
				ResourceClass: "UNDEF",
				ResourceName:  "UNDEF",
			},
			wantErr: false,
		},
		{
			name: "empty attributes are storable",
			activation: common.Activation{
				EventID:    "5a7e5f9e-0c2f-4a3f-9b0e-0f4f8c1d2e3b",
				OccurredAt: time.Now(),
				Backend:    "hyprland",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateActivation(tt.activation)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateActivation() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestNewClient_MissingConnectionString tests that NewClient fails appropriately
func TestNewClient_MissingConnectionString(t *testing.T) {
	// Clear environment variable
	t.Setenv("TOSHY_POSTGRES_CONNECTION_STRING", "")

	_, err := NewClient("")
	if err == nil {
		t.Error("NewClient() should fail with empty connection string")
	}

	if err != nil && err.Error() == "" {
		t.Error("Error message should not be empty")
	}
}
