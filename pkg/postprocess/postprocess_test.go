package postprocess

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

func canvas(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 160, A: 255})
}

func TestNeedsPostprocessing(t *testing.T) {
	zero := style.Default()
	grainy := style.Default()
	grainy.GrainStrength = 0.2
	textureOnly := style.Default()
	textureOnly.TextureStrength = 0.5

	tests := []struct {
		name   string
		format string
		cfg    style.Config
		want   bool
	}{
		{"png with grain", "png", grainy, true},
		{"svg with grain", "svg", grainy, false},
		{"pdf with grain", "pdf", grainy, false},
		{"png all zero", "png", zero, false},
		{"texture without path", "png", textureOnly, false},
	}
	for _, tt := range tests {
		if got := NeedsPostprocessing(tt.format, tt.cfg); got != tt.want {
			t.Errorf("%s: NeedsPostprocessing(%q) = %v, want %v", tt.name, tt.format, got, tt.want)
		}
	}
}

func TestApplyOrder(t *testing.T) {
	dir := t.TempDir()
	tex := filepath.Join(dir, "paper.png")
	require.NoError(t, imaging.Save(imaging.New(4, 4, color.NRGBA{R: 255, G: 255, B: 240, A: 255}), tex))

	cfg := style.Default()
	cfg.ColorGradingStrength = 0.5
	cfg.VignetteStrength = 0.3
	cfg.GrainStrength = 0.1
	cfg.TextureStrength = 0.2
	cfg.PaperTexturePath = tex

	out, applied, err := Apply(canvas(16, 12), Options{Config: cfg, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{EffectGrain, EffectVignette, EffectTexture, EffectColorGrading}, applied)
	assert.Equal(t, image.Rect(0, 0, 16, 12), out.Bounds())
}

func TestApplyNoEffects(t *testing.T) {
	src := canvas(8, 8)
	out, applied, err := Apply(src, Options{Config: style.Default()})
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestGrainIsDeterministic(t *testing.T) {
	cfg := style.Default()
	cfg.GrainStrength = 0.4

	a, _, err := Apply(canvas(20, 20), Options{Config: cfg, Seed: 42})
	require.NoError(t, err)
	b, _, err := Apply(canvas(20, 20), Options{Config: cfg, Seed: 42})
	require.NoError(t, err)
	c, _, err := Apply(canvas(20, 20), Options{Config: cfg, Seed: 43})
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix, "same seed must reproduce the grain")
	assert.NotEqual(t, a.Pix, c.Pix, "different seeds should differ")
}

func TestVignetteDarkensCorners(t *testing.T) {
	img := canvas(21, 21)
	vignette(img, 0.5)

	center := img.NRGBAAt(10, 10)
	corner := img.NRGBAAt(0, 0)
	assert.Less(t, corner.R, center.R)
	assert.Equal(t, uint8(200), center.R, "center is untouched")
	assert.Equal(t, uint8(0), corner.R, "corners go black")
}

func TestTextureMissingFile(t *testing.T) {
	cfg := style.Default()
	cfg.TextureStrength = 0.5
	cfg.PaperTexturePath = filepath.Join(t.TempDir(), "missing.png")

	_, _, err := Apply(canvas(4, 4), Options{Config: cfg})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestBlend(t *testing.T) {
	img := canvas(1, 1)
	blend(img, 0, 0, color.NRGBA{A: 255}, 0.5)
	assert.Equal(t, uint8(100), img.Pix[0])
	assert.Equal(t, uint8(255), img.Pix[3])

	blend(img, 0, 0, color.NRGBA{R: 255, A: 255}, 0)
	assert.Equal(t, uint8(100), img.Pix[0], "zero opacity is a no-op")
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, -1.0, linspace(0, 5))
	assert.Equal(t, 0.0, linspace(2, 5))
	assert.Equal(t, 1.0, linspace(4, 5))
	assert.Equal(t, -1.0, linspace(0, 1))
}
