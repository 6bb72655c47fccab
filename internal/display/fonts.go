// ABOUTME: Font loading for the clock faces
// ABOUTME: Loads TTF faces from a font directory or the embedded Go fonts
package display

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harperreed/dualclock/internal/clockerr"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/opentype"
)

// Font sizes in points at 72 DPI, i.e. pixels.
const (
	HoursFontSize   = 90
	MinutesFontSize = 60
	DialFontSize    = 18
)

// FontSet holds the three faces the clock uses.
type FontSet struct {
	Hours   font.Face // digital hours group
	Minutes font.Face // digital minutes and seconds
	Dial    font.Face // analog perimeter digits
}

// LoadFonts loads hours.ttf, minutes.ttf and dial.ttf from dir. An empty dir
// selects the embedded Go fonts. Any failure is a display init failure.
func LoadFonts(dir string) (*FontSet, error) {
	bold, italic := gobold.TTF, gomediumitalic.TTF
	hoursData, minutesData, dialData := bold, bold, italic

	if dir != "" {
		var err error
		if hoursData, err = readFont(dir, "hours.ttf"); err != nil {
			return nil, err
		}
		if minutesData, err = readFont(dir, "minutes.ttf"); err != nil {
			return nil, err
		}
		if dialData, err = readFont(dir, "dial.ttf"); err != nil {
			return nil, err
		}
	}

	hours, err := newFace(hoursData, HoursFontSize)
	if err != nil {
		return nil, err
	}
	minutes, err := newFace(minutesData, MinutesFontSize)
	if err != nil {
		return nil, err
	}
	dial, err := newFace(dialData, DialFontSize)
	if err != nil {
		return nil, err
	}

	return &FontSet{Hours: hours, Minutes: minutes, Dial: dial}, nil
}

func readFont(dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, clockerr.New("display.LoadFonts", clockerr.KindDisplayInit, err)
	}
	return data, nil
}

func newFace(data []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, clockerr.New("display.LoadFonts", clockerr.KindDisplayInit,
			fmt.Errorf("failed to parse font: %w", err))
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, clockerr.New("display.LoadFonts", clockerr.KindDisplayInit,
			fmt.Errorf("failed to create %.0fpx face: %w", size, err))
	}
	return face, nil
}
