// Package testutil provides shared test helpers.
//
// [DecodeQRFile] and [DecodeQRImage] read a QR symbol back with a standard
// decoder (github.com/makiuchi-d/gozxing) so tests can assert on what a scanner
// would see. [WriteTemplate] produces a solid-color PNG to stand in for a badge
// template.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// DecodeQRImage returns the text encoded in img.
func DecodeQRImage(t fataler, img image.Image) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		t.Fatalf("binary bitmap: %v", err)
	}
	res, err := gozxingqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		t.Fatalf("decode qr: %v", err)
	}
	return res.GetText()
}

// DecodeQRFile opens the image at path and returns the text it encodes.
func DecodeQRFile(t fataler, path string) string {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return DecodeQRImage(t, img)
}

// WriteTemplate writes a w x h PNG filled with a light gray to path.
func WriteTemplate(t fataler, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save template %s: %v", path, err)
	}
}
