package render

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"

	"qrbadge/internal/core"
	"qrbadge/internal/fsutil"
)

const (
	DefaultBoxSize    = 10
	DefaultResolution = 700
	MaxVersion        = 40
	maxResolution     = 8192
)

// ParseLevel maps a configured error-correction name to a recovery level.
func ParseLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "low", "l":
		return qrcode.Low, nil
	case "medium", "m":
		return qrcode.Medium, nil
	case "high", "q":
		return qrcode.High, nil
	case "highest", "h":
		return qrcode.Highest, nil
	default:
		return qrcode.Low, fmt.Errorf("unknown error-correction level %q (expected low|medium|high|highest)", name)
	}
}

// QROptions configures symbol construction and rasterization.
type QROptions struct {
	Level qrcode.RecoveryLevel

	// Version forces a QR version in 1..40. Zero picks the smallest version
	// that fits the payload.
	Version int

	// BoxSize is the width in pixels of one module before any resize.
	BoxSize int

	// QuietZone keeps the standard 4-module white border.
	QuietZone bool

	// Resolution upscales the square image to Resolution x Resolution.
	// Zero keeps the natural size.
	Resolution int
}

// DefaultQROptions matches the badge print layout: low ECC, 10px modules,
// quiet zone on, upscaled to 700x700.
func DefaultQROptions() QROptions {
	return QROptions{
		Level:      qrcode.Low,
		BoxSize:    DefaultBoxSize,
		QuietZone:  true,
		Resolution: DefaultResolution,
	}
}

func (o QROptions) Validate() error {
	if o.Version < 0 || o.Version > MaxVersion {
		return fmt.Errorf("qr version %d out of range (0 = auto, 1..%d)", o.Version, MaxVersion)
	}
	if o.BoxSize <= 0 {
		return fmt.Errorf("qr box size must be > 0 (got %d)", o.BoxSize)
	}
	if o.Resolution < 0 || o.Resolution > maxResolution {
		return fmt.Errorf("qr resolution must be in 0..%d (got %d)", maxResolution, o.Resolution)
	}
	return nil
}

// QRRenderer draws payloads as QR images.
type QRRenderer struct {
	opts QROptions
}

func NewQRRenderer(opts QROptions) (*QRRenderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &QRRenderer{opts: opts}, nil
}

// Encode returns the canonical text encoding of payload: compact JSON with keys
// in struct field order, no HTML escaping and no trailing newline.
func Encode(payload any) ([]byte, error) {
	return core.MarshalCompact(payload)
}

// Image encodes payload and draws its symbol.
//
// A payload that does not fit the configured version and level fails with
// core.ErrEncodingCapacityExceeded; nothing is truncated.
func (r *QRRenderer) Image(payload any) (image.Image, error) {
	content, err := Encode(payload)
	if err != nil {
		return nil, core.RowError("serializing qr payload", err)
	}

	var q *qrcode.QRCode
	if r.opts.Version == 0 {
		q, err = qrcode.New(string(content), r.opts.Level)
	} else {
		q, err = qrcode.NewWithForcedVersion(string(content), r.opts.Version, r.opts.Level)
	}
	if err != nil {
		return nil, core.CapacityError(fmt.Sprintf("%d-byte payload at version %s, level %s",
			len(content), versionLabel(r.opts.Version), levelLabel(r.opts.Level)), err)
	}
	q.DisableBorder = !r.opts.QuietZone

	// A negative size asks for BoxSize pixels per module.
	img := q.Image(-r.opts.BoxSize)
	if r.opts.Resolution > 0 && img.Bounds().Dx() != r.opts.Resolution {
		img = imaging.Resize(img, r.opts.Resolution, r.opts.Resolution, imaging.NearestNeighbor)
	}
	return img, nil
}

// Render draws payload and writes it as a PNG to dest, returning dest.
func (r *QRRenderer) Render(payload any, dest string) (string, error) {
	img, err := r.Image(payload)
	if err != nil {
		return "", err
	}
	if err := writePNG(dest, img); err != nil {
		return "", core.RowError(fmt.Sprintf("writing qr image %s", dest), err)
	}
	return dest, nil
}

func writePNG(dest string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(dest, buf.Bytes(), 0o644)
}

func versionLabel(v int) string {
	if v == 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", v)
}

func levelLabel(l qrcode.RecoveryLevel) string {
	switch l {
	case qrcode.Low:
		return "low"
	case qrcode.Medium:
		return "medium"
	case qrcode.High:
		return "high"
	case qrcode.Highest:
		return "highest"
	default:
		return fmt.Sprintf("%d", int(l))
	}
}
