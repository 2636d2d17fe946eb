// Package postprocess applies raster effects to rendered posters.
//
// Effects run only on PNG output and only when their strength is positive,
// always in the same order: grain, vignette, paper texture, color grading.
// Grain is seeded so the same seed reproduces the same poster.
package postprocess

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// Effect names, as reported in pipeline results.
const (
	EffectGrain        = "grain"
	EffectVignette     = "vignette"
	EffectTexture      = "texture"
	EffectColorGrading = "color_grading"
)

const (
	grainOpacity     = 0.35
	vignetteFalloff  = 1.5
	vignetteLinear   = 0.1
	colorGradingStep = 10.0 // percent at full strength
)

// NeedsPostprocessing reports whether format gets any raster effect under
// cfg. Vector formats never do.
func NeedsPostprocessing(format string, cfg style.Config) bool {
	return format == "png" && len(cfg.Effects()) > 0
}

// Options configures Apply.
type Options struct {
	Config style.Config
	// Seed drives the grain noise.
	Seed   int64
	Logger *log.Logger
}

// Apply runs the effects enabled in opts.Config on img and returns the
// result with the names of the applied effects, in application order.
func Apply(img image.Image, opts Options) (*image.NRGBA, []string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	cfg := opts.Config

	out := imaging.Clone(img)
	var applied []string
	for _, effect := range cfg.Effects() {
		switch effect {
		case EffectGrain:
			grain(out, cfg.GrainStrength, opts.Seed)
		case EffectVignette:
			vignette(out, cfg.VignetteStrength)
		case EffectTexture:
			tex, err := imaging.Open(cfg.PaperTexturePath)
			if err != nil {
				return nil, applied, errors.Wrap(errors.ErrCodeInvalidPath, err, "open paper texture %s", cfg.PaperTexturePath)
			}
			overlay(out, tex, cfg.TextureStrength)
		case EffectColorGrading:
			out = colorGrade(out, cfg.ColorGradingStrength)
		default:
			return nil, applied, fmt.Errorf("unknown effect %q", effect)
		}
		applied = append(applied, effect)
		logger.Debug("applied effect", "effect", effect)
	}
	return out, applied, nil
}

// grain composites gray gaussian noise over img.
func grain(img *image.NRGBA, strength float64, seed int64) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	alpha := float64(int(255*min(strength, 1)*grainOpacity)) / 255
	sigma := 255 * strength

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := clamp8(rng.NormFloat64()*sigma + 128)
			blend(img, x, y, color.NRGBA{R: n, G: n, B: n, A: 255}, alpha)
		}
	}
}

// vignette darkens img toward its corners. The mask is 1 at the center and
// falls to 0 on the inscribed circle's far side.
func vignette(img *image.NRGBA, strength float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	eff := strength * vignetteLinear
	black := color.NRGBA{A: 255}

	for j := 0; j < h; j++ {
		yv := linspace(j, h)
		for i := 0; i < w; i++ {
			xv := linspace(i, w)
			m := min(1, max(0, 1-(xv*xv+yv*yv)))
			m = math.Pow(m, vignetteFalloff)*(1-eff) + eff*m
			shade := float64(255-uint8(m*255)) / 255
			blend(img, b.Min.X+i, b.Min.Y+j, black, shade)
		}
	}
}

// overlay resizes tex to img and composites it with its alpha scaled by
// strength.
func overlay(img *image.NRGBA, tex image.Image, strength float64) {
	b := img.Bounds()
	fitted := imaging.Resize(tex, b.Dx(), b.Dy(), imaging.Lanczos)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := fitted.NRGBAAt(x, y)
			a := float64(int(float64(c.A)*strength)) / 255
			blend(img, b.Min.X+x, b.Min.Y+y, c, a)
		}
	}
}

func colorGrade(img *image.NRGBA, strength float64) *image.NRGBA {
	pct := min(strength, 1) * colorGradingStep
	return imaging.AdjustContrast(imaging.AdjustSaturation(img, pct), pct)
}

// blend composites c at opacity a over the pixel at (x, y).
func blend(img *image.NRGBA, x, y int, c color.NRGBA, a float64) {
	if a <= 0 {
		return
	}
	i := img.PixOffset(x, y)
	px := img.Pix[i : i+4 : i+4]
	dstA := float64(px[3]) / 255
	outA := a + dstA*(1-a)
	if outA <= 0 {
		return
	}
	mix := func(src, dst uint8) uint8 {
		return clamp8((float64(src)*a + float64(dst)*dstA*(1-a)) / outA)
	}
	px[0] = mix(c.R, px[0])
	px[1] = mix(c.G, px[1])
	px[2] = mix(c.B, px[2])
	px[3] = clamp8(outA * 255)
}

// linspace returns the i-th of n evenly spaced values from -1 to 1.
func linspace(i, n int) float64 {
	if n <= 1 {
		return -1
	}
	return -1 + 2*float64(i)/float64(n-1)
}

func clamp8(v float64) uint8 {
	return uint8(min(255, max(0, math.Round(v))))
}
