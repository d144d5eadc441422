// Package sheetmeta records how a contact sheet was laid out so printed or
// exported sheets can later be sliced back into frames. The same geometry
// is carried twice: a JSON sidecar for tooling, and a compact single-line
// form short enough to print on the sheet itself.
package sheetmeta

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrBadCompact reports an unparseable compact geometry line.
var ErrBadCompact = errors.New("bad compact sheet line")

// Sheet is the slicing geometry of one page. Page is 1-based, frame
// numbers are 0-based and global across the run.
type Sheet struct {
	Page       int `json:"page"`
	Pages      int `json:"pages"`
	Rows       int `json:"rows"`
	Columns    int `json:"columns"`
	FrameStart int `json:"frame_start"`
	FrameCount int `json:"frame_count"`
	CellWidth  int `json:"cell_width"`
	CellHeight int `json:"cell_height"`
	Margin     int `json:"margin"`
	Spacing    int `json:"spacing"`

	Interval float64 `json:"interval"` // seconds between sampled frames
}

// Compact encodes the geometry as one printable token, for example
// "p1/3|g6x3|f0+18|c730x410|m150s30|@2". Short enough to label the
// sheet's margin, complete enough to slice the sheet without the sidecar.
func (s Sheet) Compact() string {
	return fmt.Sprintf("p%d/%d|g%dx%d|f%d+%d|c%dx%d|m%ds%d|@%g",
		s.Page, s.Pages, s.Rows, s.Columns, s.FrameStart, s.FrameCount,
		s.CellWidth, s.CellHeight, s.Margin, s.Spacing, s.Interval)
}

// ParseCompact is the inverse of Compact.
func ParseCompact(line string) (Sheet, error) {
	var s Sheet
	n, err := fmt.Sscanf(strings.TrimSpace(line), "p%d/%d|g%dx%d|f%d+%d|c%dx%d|m%ds%d|@%g",
		&s.Page, &s.Pages, &s.Rows, &s.Columns, &s.FrameStart, &s.FrameCount,
		&s.CellWidth, &s.CellHeight, &s.Margin, &s.Spacing, &s.Interval)
	if err != nil || n != 11 {
		return Sheet{}, fmt.Errorf("%w: %q", ErrBadCompact, line)
	}
	if s.Page < 1 || s.Pages < s.Page || s.Rows < 1 || s.Columns < 1 ||
		s.FrameStart < 0 || s.FrameCount < 1 || s.CellWidth < 1 || s.CellHeight < 1 ||
		s.Margin < 0 || s.Spacing < 0 || s.Interval <= 0 {
		return Sheet{}, fmt.Errorf("%w: out of range values in %q", ErrBadCompact, line)
	}
	return s, nil
}

// Document is the sidecar for one export: source identity, sampling
// parameters and every sheet's geometry.
type Document struct {
	Video        string  `json:"video"`
	VideoSHA256  string  `json:"video_sha256,omitempty"`
	SourceWidth  int     `json:"source_width,omitempty"`
	SourceHeight int     `json:"source_height,omitempty"`
	Interval     float64 `json:"interval"`
	FPS          float64 `json:"fps"`
	DPI          int     `json:"dpi,omitempty"`
	Sheets       []Sheet `json:"sheets"`
}

// HashFile computes the hex sha256 of a file, used to tie a sidecar to the
// exact video it was generated from.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Validate checks internal consistency: contiguous pages starting at 1,
// all claiming the same page total.
func (d *Document) Validate() error {
	if d.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d.Interval)
	}
	for i, s := range d.Sheets {
		if s.Page != i+1 {
			return fmt.Errorf("sheet %d claims page %d", i, s.Page)
		}
		if s.Pages != len(d.Sheets) {
			return fmt.Errorf("sheet %d claims %d pages, document has %d", i, s.Pages, len(d.Sheets))
		}
	}
	return nil
}

// Write emits the document as indented JSON.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Read parses a sidecar document and validates it.
func Read(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("sheetmeta: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("sheetmeta: %w", err)
	}
	return &d, nil
}

// SidecarPath is the sidecar filename for an export path, the export with
// a .json extension appended.
func SidecarPath(exportPath string) string {
	return exportPath + ".json"
}

// WriteFile writes the sidecar next to the export.
func (d *Document) WriteFile(exportPath string) error {
	f, err := os.Create(SidecarPath(exportPath))
	if err != nil {
		return err
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads the sidecar for an export path.
func ReadFile(exportPath string) (*Document, error) {
	f, err := os.Open(SidecarPath(exportPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
