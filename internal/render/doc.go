// Package render turns delegate payloads into printable images.
//
// QRRenderer serializes a payload to canonical compact JSON and draws it as a
// square QR symbol (github.com/skip2/go-qrcode), optionally upscaled with
// nearest-neighbor sampling so module edges stay sharp. Compositor pastes a
// rendered symbol onto a badge template at a fixed offset
// (github.com/disintegration/imaging).
//
// Both write PNGs atomically and create parent directories as needed.
package render
