// Package dither applies halftone-simulating transforms to ink density
// rasters. A density raster is an image.Gray where 0 means no ink and 255
// means full ink coverage; every transform maps a raster to a new raster
// of identical dimensions and is deterministic for a given input and
// parameter set.
package dither

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

var (
	// ErrInvalidParams reports an unknown algorithm or an out-of-range
	// parameter. Surfaced before any processing starts.
	ErrInvalidParams = errors.New("invalid dither parameters")
	// ErrInvalidInput reports a nil or empty input raster. This is a
	// programmer error, not a user-facing one.
	ErrInvalidInput = errors.New("invalid dither input")
)

// Algorithm selects one of the supported transforms.
type Algorithm int

const (
	None Algorithm = iota
	FloydSteinberg
	Threshold
	Halftone
	Pixelate
	Scanlines
)

var algorithmNames = map[Algorithm]string{
	None:           "none",
	FloydSteinberg: "floyd-steinberg",
	Threshold:      "threshold",
	Halftone:       "halftone",
	Pixelate:       "pixelate",
	Scanlines:      "scanlines",
}

func (a Algorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", int(a))
}

// ParseAlgorithm maps a name like "floyd-steinberg" to its Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, s := range algorithmNames {
		if s == strings.ToLower(name) {
			return a, nil
		}
	}
	return None, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, name)
}

// Params holds the transform selection and its knobs. Zero values for the
// knobs of the selected algorithm are filled in by Default.
type Params struct {
	Algorithm Algorithm
	CellSize  int     // halftone, pixelate
	Threshold uint8   // threshold
	Angle     float64 // halftone screen angle in degrees
	Period    int     // scanlines
}

// Default returns params for algo with the defaults the original layouts
// used: 8px halftone cells, 12px pixelate cells, threshold at 128,
// scanline period 4.
func Default(algo Algorithm) Params {
	p := Params{Algorithm: algo, Threshold: 128, Angle: 0, Period: 4}
	switch algo {
	case Pixelate:
		p.CellSize = 12
	default:
		p.CellSize = 8
	}
	return p
}

// Validate checks the parameters against the selected algorithm.
func (p Params) Validate() error {
	switch p.Algorithm {
	case None, FloydSteinberg, Threshold:
		return nil
	case Halftone, Pixelate:
		if p.CellSize < 1 {
			return fmt.Errorf("%w: %s cell size must be >= 1, got %d", ErrInvalidParams, p.Algorithm, p.CellSize)
		}
		if p.Algorithm == Halftone && (math.IsNaN(p.Angle) || math.IsInf(p.Angle, 0)) {
			return fmt.Errorf("%w: halftone angle must be finite", ErrInvalidParams)
		}
		return nil
	case Scanlines:
		if p.Period < 2 {
			return fmt.Errorf("%w: scanline period must be >= 2, got %d", ErrInvalidParams, p.Period)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, p.Algorithm)
}

// Apply runs the selected transform on a density raster and returns a new
// raster of the same dimensions. The input is never modified.
func Apply(p Params, src *image.Gray) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: nil or empty raster", ErrInvalidInput)
	}

	switch p.Algorithm {
	case None:
		b := src.Bounds()
		w, h := b.Dx(), b.Dy()
		out := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[row:row+w])
		}
		return out, nil
	case FloydSteinberg:
		return floydSteinberg(src), nil
	case Threshold:
		return threshold(src, p.Threshold), nil
	case Halftone:
		return halftone(src, p.CellSize, p.Angle), nil
	case Pixelate:
		return pixelate(src, p.CellSize), nil
	case Scanlines:
		return scanlines(src, p.Period), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidParams, p.Algorithm)
}

// floydSteinberg quantizes to ink/no-ink, diffusing the quantization error
// to the right, below-left, below and below-right neighbors with the
// canonical 7/16, 3/16, 5/16, 1/16 weights. Row-major, left to right;
// error falling outside the raster is dropped.
func floydSteinberg(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	buf := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[y*w+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}

	spread := func(x, y int, v float64) {
		if x < 0 || x >= w || y >= h {
			return
		}
		buf[y*w+x] += v
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			old := buf[y*w+x]
			var quantized float64
			if old >= 128 {
				quantized = 255
				out.Pix[y*out.Stride+x] = 255
			}
			diff := old - quantized

			spread(x+1, y, diff*7/16)
			spread(x-1, y+1, diff*3/16)
			spread(x, y+1, diff*5/16)
			spread(x+1, y+1, diff*1/16)
		}
	}
	return out
}

// threshold is full ink where density >= t, none elsewhere.
func threshold(src *image.Gray, t uint8) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if src.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= t {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// halftone renders one dot per grid cell whose radius grows with the mean
// cell density, on a no-ink background. The grid can be rotated by angle
// degrees to simulate a screen angle.
func halftone(src *image.Gray, cellSize int, angle float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cs := float64(cellSize)
	// slight overlap so adjacent full dots merge into solid coverage
	maxRadius := cs / 2 * 1.3

	type cellAcc struct {
		sum   int64
		count int64
	}
	cells := map[[2]int]*cellAcc{}
	cellOf := func(x, y int) [2]int {
		// rotate into screen space, then bucket
		fx, fy := float64(x), float64(y)
		u := fx*cos + fy*sin
		v := -fx*sin + fy*cos
		return [2]int{int(math.Floor(u / cs)), int(math.Floor(v / cs))}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			key := cellOf(x, y)
			acc := cells[key]
			if acc == nil {
				acc = &cellAcc{}
				cells[key] = acc
			}
			acc.sum += int64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			acc.count++
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			key := cellOf(x, y)
			acc := cells[key]
			avg := float64(acc.sum) / float64(acc.count)
			radius := avg / 255 * maxRadius
			if radius <= 0.5 {
				continue
			}
			// distance to cell center in screen space
			cu := (float64(key[0]) + 0.5) * cs
			cv := (float64(key[1]) + 0.5) * cs
			fx, fy := float64(x), float64(y)
			u := fx*cos + fy*sin
			v := -fx*sin + fy*cos
			du, dv := u-cu, v-cv
			if du*du+dv*dv <= radius*radius {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// pixelate block-averages density over non-overlapping cells and fills
// each cell uniformly. cellSize 1 is the identity transform.
func pixelate(src *image.Gray, cellSize int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	for cy := 0; cy < h; cy += cellSize {
		for cx := 0; cx < w; cx += cellSize {
			x1, y1 := cx+cellSize, cy+cellSize
			if x1 > w {
				x1 = w
			}
			if y1 > h {
				y1 = h
			}
			var sum, count int
			for y := cy; y < y1; y++ {
				for x := cx; x < x1; x++ {
					sum += int(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
					count++
				}
			}
			avg := uint8((sum + count/2) / count)
			for y := cy; y < y1; y++ {
				for x := cx; x < x1; x++ {
					out.Pix[y*out.Stride+x] = avg
				}
			}
		}
	}
	return out
}

// scanlines zeroes every period-th row, simulating a line screen. Purely
// positional, content independent.
func scanlines(src *image.Gray, period int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		if y%period == 0 {
			continue
		}
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = src.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		}
	}
	return out
}
