package duration

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"100ms", 100 * time.Millisecond, false},
		{"0", 0, false},
		{"1d", 24 * time.Hour, false},
		{"30days", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"5mins", 5 * time.Minute, false},
		{" 1d ", 24 * time.Hour, false},
		{"", 0, true},
		{"-1h", 0, true},
		{"invalid", 0, true},
		{"3fortnights", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "24 hours"},
		{time.Hour, "1 hour"},
		{72 * time.Hour, "3 days"},
		{5 * time.Minute, "5 minutes"},
		{1500 * time.Millisecond, "1.5s"},
		{0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Hour, "now"},
		{30 * time.Second, "now"},
		{5 * time.Minute, "5m"},
		{59 * time.Minute, "59m"},
		{2*time.Hour + 40*time.Minute, "2h"},
		{3 * 24 * time.Hour, "3d"},
		{15 * 24 * time.Hour, "2w"},
		{95 * 24 * time.Hour, "3mo"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Age(tt.in); got != tt.want {
				t.Errorf("Age(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
