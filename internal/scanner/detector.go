// Package scanner turns a stream of camera frames into confirmed barcode reads.
package scanner

import (
	"context"
	"fmt"
	"image"
	"strings"
)

type Format string

const (
	FormatEAN13   Format = "ean_13"
	FormatEAN8    Format = "ean_8"
	FormatUPCA    Format = "upc_a"
	FormatCode128 Format = "code_128"
	FormatQR      Format = "qr_code"
)

// GroceryFormats is the retail subset used by the sell view.
var GroceryFormats = []Format{FormatEAN13, FormatEAN8, FormatUPCA}

// AllFormats lists every format a detector backend has to support.
var AllFormats = []Format{FormatEAN13, FormatEAN8, FormatUPCA, FormatCode128, FormatQR}

// ParseFormats reads a comma separated format list such as "ean_13,upc_a".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		f := Format(part)
		switch f {
		case FormatEAN13, FormatEAN8, FormatUPCA, FormatCode128, FormatQR:
			out = append(out, f)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoFormats
	}
	return out, nil
}

type Detection struct {
	Code   string `json:"code"`
	Format Format `json:"format"`
}

// Detector finds one barcode in a frame. Decode failures are reported as no
// detection.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (Detection, bool)
}

// UnsupportedDetector is the backend used when no decoder could be set up. It
// never detects anything, leaving manual entry as the only way to add products.
type UnsupportedDetector struct{}

func (UnsupportedDetector) Detect(context.Context, image.Image) (Detection, bool) {
	return Detection{}, false
}
