// ABOUTME: Tests for palette helpers
// ABOUTME: Verifies hex parsing and formatting
package display

import (
	"image/color"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#808000", Olive, false},
		{"800080", Purple, false},
		{" #ffff00 ", Yellow, false},
		{"#fff", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}

	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q): unexpected error state %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHex(t *testing.T) {
	if got := Hex(SkyBlue); got != "#87ceeb" {
		t.Errorf("expected #87ceeb, got %s", got)
	}
}
