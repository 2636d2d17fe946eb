// Package fonts provides the font faces used for poster typography.
//
// A poster uses three weights: bold for the city name, light for the
// country label and attribution, regular for coordinates. The Liberation
// Sans faces embedded in gonum/plot are always available; a fonts directory
// containing Roboto-Bold.ttf, Roboto-Regular.ttf and Roboto-Light.ttf
// replaces them weight by weight.
package fonts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/font/liberation"
)

// Weight selects one of the poster faces.
type Weight int

const (
	Regular Weight = iota
	Bold
	Light
)

func (w Weight) String() string {
	switch w {
	case Bold:
		return "bold"
	case Light:
		return "light"
	default:
		return "regular"
	}
}

// Typeface names registered in a Set's cache.
const (
	FamilyLiberation = "Liberation"
	FamilyRoboto     = "Roboto"
)

// files maps each weight to its file name inside a fonts directory.
var files = map[Weight]string{
	Bold:    "Roboto-Bold.ttf",
	Regular: "Roboto-Regular.ttf",
	Light:   "Roboto-Light.ttf",
}

// Set resolves weights to sized faces.
type Set struct {
	cache *font.Cache
	fonts map[Weight]font.Font
}

var (
	defaultSet     *Set
	defaultSetOnce sync.Once
)

// Default returns the Liberation Sans set. Light maps to the regular face.
// The result is built once and shared.
func Default() *Set {
	defaultSetOnce.Do(func() {
		defaultSet = &Set{
			cache: font.NewCache(liberation.Collection()),
			fonts: map[Weight]font.Font{
				Regular: {Typeface: FamilyLiberation, Variant: "Sans"},
				Bold:    {Typeface: FamilyLiberation, Variant: "Sans", Weight: xfont.WeightBold},
				Light:   {Typeface: FamilyLiberation, Variant: "Sans"},
			},
		}
	})
	return defaultSet
}

// Load returns a set using the Roboto files found in dir. Weights whose file
// is missing or unreadable keep the Liberation face and are logged. An empty
// dir returns [Default].
func Load(dir string, logger *log.Logger) *Set {
	if dir == "" {
		return Default()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	base := Default()
	coll := liberation.Collection()
	fonts := make(map[Weight]font.Font, len(base.fonts))
	for w, f := range base.fonts {
		fonts[w] = f
	}
	for w, name := range files {
		path := filepath.Join(dir, name)
		face, err := parseFile(path)
		if err != nil {
			logger.Warn("font not found, using Liberation Sans", "weight", w, "path", path, "err", err)
			continue
		}
		fnt := font.Font{Typeface: FamilyRoboto, Weight: robotoWeight(w)}
		coll = append(coll, font.Face{Font: fnt, Face: face})
		fonts[w] = fnt
	}
	return &Set{cache: font.NewCache(coll), fonts: fonts}
}

func parseFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

func robotoWeight(w Weight) xfont.Weight {
	switch w {
	case Bold:
		return xfont.WeightBold
	case Light:
		return xfont.WeightLight
	default:
		return xfont.WeightNormal
	}
}

// Font returns the font description for w at size.
func (s *Set) Font(w Weight, size font.Length) font.Font {
	f := s.fonts[w]
	f.Size = size
	return f
}

// Face returns the sized face for w.
func (s *Set) Face(w Weight, size font.Length) font.Face {
	return s.cache.Lookup(s.fonts[w], size)
}

// Family reports the typeface backing w.
func (s *Set) Family(w Weight) string {
	return string(s.fonts[w].Typeface)
}
