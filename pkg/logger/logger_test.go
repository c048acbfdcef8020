package logger

import (
	"testing"

	"github.com/igefined/orderbook-sampler/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{name: "console info", cfg: config.LoggingConfig{Level: "info", Format: "console"}},
		{name: "json debug", cfg: config.LoggingConfig{Level: "debug", Format: "json"}},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger failed: %v", err)
			}
			if !logger.Core().Enabled(logger.Level()) {
				t.Error("logger does not accept its own level")
			}
		})
	}
}
