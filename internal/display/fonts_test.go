// ABOUTME: Tests for font loading
// ABOUTME: Embedded defaults load and missing files fail as display init errors
package display

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/dualclock/internal/clockerr"
)

func TestLoadFontsDefault(t *testing.T) {
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts failed: %v", err)
	}

	if fonts.Hours.Metrics().Height.Round() <= fonts.Minutes.Metrics().Height.Round() {
		t.Error("expected hours face taller than minutes face")
	}
	if fonts.Dial == nil {
		t.Error("expected dial face")
	}
}

func TestLoadFontsMissingDir(t *testing.T) {
	_, err := LoadFonts(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, clockerr.ErrDisplayInit) {
		t.Errorf("expected display init error, got %v", err)
	}
}

func TestLoadFontsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"hours.ttf", "minutes.ttf", "dial.ttf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("not a font"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := LoadFonts(dir)
	if !errors.Is(err, clockerr.ErrDisplayInit) {
		t.Errorf("expected display init error, got %v", err)
	}
}
