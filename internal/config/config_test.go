package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseInt64List(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int64
		wantErr bool
	}{
		{"2001,2002,2003", []int64{2001, 2002, 2003}, false},
		{" 2001 , 2002 ", []int64{2001, 2002}, false},
		{"2001", []int64{2001}, false},
		{"", nil, false},
		{"2001,abc", nil, true},
	}

	for _, tt := range tests {
		got, err := parseInt64List(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInt64List(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseInt64List(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsOperator(t *testing.T) {
	cfg := GatewayConfig{Operators: []int64{2001, 2002}}

	if !cfg.IsOperator(2001) {
		t.Error("IsOperator(2001) = false, want true")
	}
	if cfg.IsOperator(555) {
		t.Error("IsOperator(555) = true, want false")
	}
	if (GatewayConfig{}).IsOperator(2001) {
		t.Error("empty allow-list admitted an operator")
	}
}

func TestPollTimeout(t *testing.T) {
	cfg := GatewayConfig{PollTimeoutSec: 25}
	if got := cfg.PollTimeout(); got != 25*time.Second {
		t.Errorf("PollTimeout() = %v, want 25s", got)
	}
}

func TestAppAddr(t *testing.T) {
	cfg := AppConfig{Host: "0.0.0.0", Port: "8080"}
	if got := cfg.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", got)
	}
}
