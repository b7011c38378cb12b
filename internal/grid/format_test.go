package grid

import "testing"

func TestFormatTime(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "0:00.000"},
		{0.5, "0:00.500"},
		{31.5, "0:31.500"},
		{65.25, "1:05.250"},
		{600, "10:00.000"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.sec); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		sec  float64
		want string
	}{
		{0, "0:00"},
		{32, "0:32"},
		{95.9, "1:35"},
		{3600, "60:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.sec); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
