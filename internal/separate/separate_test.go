package separate_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/alvinashiatey/videoToRISO/internal/separate"

	"github.com/google/go-cmp/cmp"
)

func randomSheet(t *testing.T, w, h int, seed int64) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(r.Intn(256))
		img.Pix[i+1] = uint8(r.Intn(256))
		img.Pix[i+2] = uint8(r.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func TestSeparateRGBDensityInversion(t *testing.T) {
	sheet := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	// pure red pixel, then black pixel
	copy(sheet.Pix, []uint8{255, 0, 0, 255, 0, 0, 0, 255})

	masters, err := separate.Separate(sheet, separate.RGBChannels)
	if err != nil {
		t.Fatal(err)
	}

	// red light means no red-channel ink; black means full ink everywhere
	testCases := []struct {
		ch       separate.Channel
		expected []uint8
	}{
		{separate.Red, []uint8{0, 255}},
		{separate.Green, []uint8{255, 255}},
		{separate.Blue, []uint8{255, 255}},
	}
	for _, tC := range testCases {
		if !bytes.Equal(tC.expected, masters[tC.ch].Pix) {
			t.Errorf("%s: expected %v, got %v", tC.ch, tC.expected, masters[tC.ch].Pix)
		}
	}
}

func TestSeparateCMYK(t *testing.T) {
	sheet := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	// white, black, pure cyan
	copy(sheet.Pix, []uint8{
		255, 255, 255, 255,
		0, 0, 0, 255,
		0, 255, 255, 255,
	})

	masters, err := separate.Separate(sheet, separate.CMYKChannels)
	if err != nil {
		t.Fatal(err)
	}

	// white needs no ink on any master
	for _, ch := range separate.CMYKChannels {
		if v := masters[ch].Pix[0]; v != 0 {
			t.Errorf("%s: expected no ink for white, got %d", ch, v)
		}
	}
	// black is carried by the K master
	if v := masters[separate.Black].Pix[1]; v != 255 {
		t.Errorf("Black: expected full ink for black, got %d", v)
	}
	for _, ch := range []separate.Channel{separate.Cyan, separate.Magenta, separate.Yellow} {
		if v := masters[ch].Pix[1]; v != 0 {
			t.Errorf("%s: expected no ink under full black, got %d", ch, v)
		}
	}
	// pure cyan is carried by the C master alone
	if v := masters[separate.Cyan].Pix[2]; v != 255 {
		t.Errorf("Cyan: expected full ink for cyan, got %d", v)
	}
	c, m, y, k := color.RGBToCMYK(0, 255, 255)
	if c != 255 || m != 0 || y != 0 || k != 0 {
		t.Fatalf("unexpected stdlib CMYK for cyan: %d %d %d %d", c, m, y, k)
	}
}

func TestSeparateDimensions(t *testing.T) {
	sheet := randomSheet(t, 13, 7, 1)
	masters, err := separate.Separate(sheet, separate.CMYKChannels)
	if err != nil {
		t.Fatal(err)
	}
	for ch, m := range masters {
		if m.Bounds().Dx() != 13 || m.Bounds().Dy() != 7 {
			t.Errorf("%s: expected 13x7 master, got %v", ch, m.Bounds())
		}
	}
}

func TestRoundTripRGB(t *testing.T) {
	sheet := randomSheet(t, 17, 11, 2)
	masters, err := separate.Separate(sheet, separate.RGBChannels)
	if err != nil {
		t.Fatal(err)
	}
	back, err := separate.Recombine(masters, 17, 11)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sheet.Pix, back.Pix) {
		t.Error("expected exact round trip with all RGB channels selected")
	}
}

func TestSeparateEmptySet(t *testing.T) {
	sheet := randomSheet(t, 2, 2, 3)
	if _, err := separate.Separate(sheet, nil); !errors.Is(err, separate.ErrNoChannelsSelected) {
		t.Errorf("expected ErrNoChannelsSelected, got %v", err)
	}
}

func TestParseSet(t *testing.T) {
	testCases := []struct {
		in       string
		expected []separate.Channel
		err      bool
	}{
		{"cmyk", []separate.Channel{separate.Cyan, separate.Magenta, separate.Yellow, separate.Black}, false},
		{"rgb", []separate.Channel{separate.Red, separate.Green, separate.Blue}, false},
		{"kc", []separate.Channel{separate.Cyan, separate.Black}, false},
		{"br", []separate.Channel{separate.Red, separate.Blue}, false},
		{"K", []separate.Channel{separate.Black}, false},
		{"", nil, true},
		{"cx", nil, true},
		{"ck r", nil, true},
		{"cr", nil, true},
	}
	for _, tC := range testCases {
		t.Run(tC.in, func(t *testing.T) {
			set, err := separate.ParseSet(tC.in)
			if tC.err {
				if err == nil {
					t.Fatalf("expected error, got %v", set)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tC.expected, set); diff != "" {
				t.Errorf("set mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
