package scanner

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDetector decodes frames with gozxing, trying one reader per selected format.
type ZXingDetector struct {
	log     *slog.Logger
	formats []Format

	// gozxing readers keep per-call scratch state
	mu      sync.Mutex
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewZXingDetector(log *slog.Logger, formats ...Format) *ZXingDetector {
	if log == nil {
		log = slog.Default()
	}
	if len(formats) == 0 {
		formats = GroceryFormats
	}

	var (
		readers  []gozxing.Reader
		possible []gozxing.BarcodeFormat
	)
	for _, f := range formats {
		switch f {
		case FormatEAN13:
			readers = append(readers, oned.NewEAN13Reader())
			possible = append(possible, gozxing.BarcodeFormat_EAN_13)
		case FormatEAN8:
			readers = append(readers, oned.NewEAN8Reader())
			possible = append(possible, gozxing.BarcodeFormat_EAN_8)
		case FormatUPCA:
			readers = append(readers, oned.NewUPCAReader())
			possible = append(possible, gozxing.BarcodeFormat_UPC_A)
		case FormatCode128:
			readers = append(readers, oned.NewCode128Reader())
			possible = append(possible, gozxing.BarcodeFormat_CODE_128)
		case FormatQR:
			readers = append(readers, qrcode.NewQRCodeReader())
			possible = append(possible, gozxing.BarcodeFormat_QR_CODE)
		}
	}

	return &ZXingDetector{
		log:     log,
		formats: formats,
		readers: readers,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_POSSIBLE_FORMATS: possible,
			gozxing.DecodeHintType_TRY_HARDER:       true,
		},
	}
}

func (d *ZXingDetector) Formats() []Format { return d.formats }

func (d *ZXingDetector) Detect(ctx context.Context, frame image.Image) (Detection, bool) {
	if frame == nil || ctx.Err() != nil {
		return Detection{}, false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		d.log.Debug("frame not decodable", "error", err)
		return Detection{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reader := range d.readers {
		if ctx.Err() != nil {
			return Detection{}, false
		}
		res, err := reader.Decode(bmp, d.hints)
		reader.Reset()
		if err != nil || res == nil {
			continue
		}
		format, ok := fromZXing(res.GetBarcodeFormat())
		if !ok {
			continue
		}
		return Detection{Code: res.GetText(), Format: format}, true
	}
	return Detection{}, false
}

func fromZXing(f gozxing.BarcodeFormat) (Format, bool) {
	switch f {
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13, true
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8, true
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA, true
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128, true
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR, true
	default:
		return "", false
	}
}
