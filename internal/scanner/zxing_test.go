package scanner

import (
	"context"
	"image"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ean13Image(t *testing.T, code string) image.Image {
	t.Helper()
	img, err := oned.NewEAN13Writer().Encode(code, gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	require.NoError(t, err)
	return img
}

func qrImage(t *testing.T, text string) image.Image {
	t.Helper()
	img, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 300, 300, nil)
	require.NoError(t, err)
	return img
}

func TestZXingDetector_EAN13(t *testing.T) {
	d := NewZXingDetector(nil)

	det, ok := d.Detect(context.Background(), ean13Image(t, "4006381333931"))

	require.True(t, ok)
	assert.Equal(t, "4006381333931", det.Code)
	assert.Equal(t, FormatEAN13, det.Format)
}

func TestZXingDetector_QRNeedsFormat(t *testing.T) {
	img := qrImage(t, "PROMO-2024")

	_, ok := NewZXingDetector(nil, GroceryFormats...).Detect(context.Background(), img)
	assert.False(t, ok)

	det, ok := NewZXingDetector(nil, FormatQR).Detect(context.Background(), img)
	require.True(t, ok)
	assert.Equal(t, "PROMO-2024", det.Code)
	assert.Equal(t, FormatQR, det.Format)
}

func TestZXingDetector_BlankFrame(t *testing.T) {
	d := NewZXingDetector(nil, AllFormats...)

	_, ok := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 200, 100)))
	assert.False(t, ok)

	_, ok = d.Detect(context.Background(), nil)
	assert.False(t, ok)
}

func TestZXingDetector_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := NewZXingDetector(nil).Detect(ctx, ean13Image(t, "4006381333931"))
	assert.False(t, ok)
}

func TestUnsupportedDetector(t *testing.T) {
	_, ok := UnsupportedDetector{}.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.False(t, ok)
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats(" EAN_13, upc_a ,")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatEAN13, FormatUPCA}, formats)

	_, err = ParseFormats("ean_13,pdf417")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = ParseFormats(" , ")
	assert.ErrorIs(t, err, ErrNoFormats)
}
