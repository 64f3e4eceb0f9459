package signway

import (
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	config := DefaultServerConfig()

	if config.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q, want :8080", config.BindAddr)
	}
	if config.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want 5s", config.ConnectTimeout)
	}
	if config.IdleReadTimeout != 30*time.Second {
		t.Errorf("IdleReadTimeout = %v, want 30s", config.IdleReadTimeout)
	}
	if config.ClockSkew != 0 {
		t.Errorf("ClockSkew = %v, want 0", config.ClockSkew)
	}
	if config.HostShape != HostShapeInParameter {
		t.Errorf("HostShape = %v, want HostShapeInParameter", config.HostShape)
	}
	if config.Logger == nil {
		t.Error("Logger should be initialized")
	}
}

func TestWithBindAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "valid address", addr: ":9090", wantErr: false},
		{name: "empty address", addr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServerConfig(WithBindAddr(tt.addr))
			if (err != nil) != tt.wantErr {
				t.Errorf("WithBindAddr(%q): err = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestWithWorkerCount(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{name: "zero means auto", n: 0, wantErr: false},
		{name: "positive", n: 8, wantErr: false},
		{name: "negative", n: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := NewServerConfig(WithWorkerCount(tt.n))
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithWorkerCount(%d): err = %v, wantErr %v", tt.n, err, tt.wantErr)
			}
			if err == nil && config.WorkerCount != tt.n {
				t.Errorf("WorkerCount = %d, want %d", config.WorkerCount, tt.n)
			}
		})
	}
}

func TestWithConnectTimeout(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		wantErr bool
	}{
		{name: "positive", d: 2 * time.Second, wantErr: false},
		{name: "zero", d: 0, wantErr: true},
		{name: "negative", d: -time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServerConfig(WithConnectTimeout(tt.d))
			if (err != nil) != tt.wantErr {
				t.Errorf("WithConnectTimeout(%v): err = %v, wantErr %v", tt.d, err, tt.wantErr)
			}
		})
	}
}

func TestWithIdleReadTimeout(t *testing.T) {
	_, err := NewServerConfig(WithIdleReadTimeout(0))
	if err == nil {
		t.Error("expected error for zero idle read timeout, got nil")
	}

	config, err := NewServerConfig(WithIdleReadTimeout(45 * time.Second))
	if err != nil {
		t.Fatalf("NewServerConfig: %v", err)
	}
	if config.IdleReadTimeout != 45*time.Second {
		t.Errorf("IdleReadTimeout = %v, want 45s", config.IdleReadTimeout)
	}
}

func TestWithClockSkew(t *testing.T) {
	if _, err := NewServerConfig(WithClockSkew(-time.Second)); err == nil {
		t.Error("expected error for negative clock skew, got nil")
	}

	config, err := NewServerConfig(WithClockSkew(2 * time.Second))
	if err != nil {
		t.Fatalf("NewServerConfig: %v", err)
	}
	if config.ClockSkew != 2*time.Second {
		t.Errorf("ClockSkew = %v, want 2s", config.ClockSkew)
	}
}

func TestWithHostShape(t *testing.T) {
	config, err := NewServerConfig(WithHostShape(HostShapeInSignature))
	if err != nil {
		t.Fatalf("NewServerConfig: %v", err)
	}
	if config.HostShape != HostShapeInSignature {
		t.Errorf("HostShape = %v, want HostShapeInSignature", config.HostShape)
	}
}

func TestWithLoggerRejectsNil(t *testing.T) {
	if _, err := NewServerConfig(WithLogger(nil)); err == nil {
		t.Error("expected error for nil logger, got nil")
	}
}

func TestNewServerConfigAppliesOptionsInOrder(t *testing.T) {
	config, err := NewServerConfig(
		WithBindAddr(":1111"),
		WithBindAddr(":2222"),
	)
	if err != nil {
		t.Fatalf("NewServerConfig: %v", err)
	}
	if config.BindAddr != ":2222" {
		t.Errorf("BindAddr = %q, want :2222 (later option should win)", config.BindAddr)
	}
}

func TestNewServerConfigStopsAtFirstError(t *testing.T) {
	_, err := NewServerConfig(WithBindAddr(""), WithConnectTimeout(time.Second))
	if err == nil {
		t.Fatal("expected error from first invalid option, got nil")
	}
}

func TestServerConfigValidate(t *testing.T) {
	config := DefaultServerConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	config.BindAddr = ""
	if err := config.Validate(); err == nil {
		t.Error("expected error for empty bind address, got nil")
	}
}
