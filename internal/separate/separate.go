// Package separate decomposes a composed color sheet into per-ink density
// masters for RISO duplication. A master is an image.Gray where 0 means no
// ink and 255 means full ink: darker source areas need more of the
// channel's ink, so RGB separation inverts intensity into density. CMYK
// components are already ink-additive and map through directly.
package separate

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
)

// ErrNoChannelsSelected is returned for an empty channel set. Detected
// before any frame is sampled.
var ErrNoChannelsSelected = errors.New("no channels selected")

// Channel identifies one ink separation.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
	Cyan
	Magenta
	Yellow
	Black
)

var channelNames = map[Channel]string{
	Red:     "Red",
	Green:   "Green",
	Blue:    "Blue",
	Cyan:    "Cyan",
	Magenta: "Magenta",
	Yellow:  "Yellow",
	Black:   "Black",
}

func (c Channel) String() string {
	if s, ok := channelNames[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", int(c))
}

// RGBChannels is the declared export order for RGB mode.
var RGBChannels = []Channel{Red, Green, Blue}

// CMYKChannels is the declared export order for CMYK mode.
var CMYKChannels = []Channel{Cyan, Magenta, Yellow, Black}

// ParseSet parses a channel set from its letters: "cmyk", "rgb", or any
// subset within one mode like "ck" or "rg". Channels come out in declared
// order regardless of input order.
func ParseSet(s string) ([]Channel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, ErrNoChannelsSelected
	}
	letters := map[rune]Channel{
		'r': Red, 'g': Green, 'b': Blue,
		'c': Cyan, 'm': Magenta, 'y': Yellow, 'k': Black,
	}
	selected := map[Channel]bool{}
	for _, r := range s {
		ch, ok := letters[r]
		if !ok {
			return nil, fmt.Errorf("unknown channel letter %q in %q", r, s)
		}
		selected[ch] = true
	}

	rgb, cmyk := false, false
	for ch := range selected {
		if ch == Red || ch == Green || ch == Blue {
			rgb = true
		} else {
			cmyk = true
		}
	}
	if rgb && cmyk {
		return nil, fmt.Errorf("cannot mix RGB and CMYK channels in %q", s)
	}

	order := CMYKChannels
	if rgb {
		order = RGBChannels
	}
	var set []Channel
	for _, ch := range order {
		if selected[ch] {
			set = append(set, ch)
		}
	}
	return set, nil
}

// Separate derives one density master per requested channel. Every master
// has the same pixel dimensions as the source sheet.
func Separate(src *image.NRGBA, set []Channel) (map[Channel]*image.Gray, error) {
	if len(set) == 0 {
		return nil, ErrNoChannelsSelected
	}
	if src == nil || src.Bounds().Empty() {
		return nil, errors.New("separate: nil or empty sheet")
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make(map[Channel]*image.Gray, len(set))
	for _, ch := range set {
		out[ch] = image.NewGray(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := src.Pix[i], src.Pix[i+1], src.Pix[i+2]
			for _, ch := range set {
				out[ch].Pix[y*w+x] = density(ch, r, g, bl)
			}
		}
	}
	return out, nil
}

func density(ch Channel, r, g, b uint8) uint8 {
	switch ch {
	case Red:
		return 255 - r
	case Green:
		return 255 - g
	case Blue:
		return 255 - b
	}
	c, m, y, k := color.RGBToCMYK(r, g, b)
	switch ch {
	case Cyan:
		return c
	case Magenta:
		return m
	case Yellow:
		return y
	default:
		return k
	}
}

// Recombine reconstructs a color sheet from RGB densities by the inverse
// mapping. Exact when all three channels are present and undithered;
// missing channels are treated as zero density (no ink, full intensity).
func Recombine(channels map[Channel]*image.Gray, width, height int) (*image.NRGBA, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannelsSelected
	}
	for ch, m := range channels {
		if ch != Red && ch != Green && ch != Blue {
			return nil, fmt.Errorf("recombine: %s is not an RGB channel", ch)
		}
		if m.Bounds().Dx() != width || m.Bounds().Dy() != height {
			return nil, fmt.Errorf("recombine: %s master is %v, want %dx%d", ch, m.Bounds(), width, height)
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	intensity := func(ch Channel, x, y int) uint8 {
		m, ok := channels[ch]
		if !ok {
			return 255
		}
		return 255 - m.GrayAt(x, y).Y
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := out.PixOffset(x, y)
			out.Pix[i] = intensity(Red, x, y)
			out.Pix[i+1] = intensity(Green, x, y)
			out.Pix[i+2] = intensity(Blue, x, y)
			out.Pix[i+3] = 255
		}
	}
	return out, nil
}
