package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	// Register decoders for the template and mask formats in use.
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Load reads an image file into a frame. The file is read as bytes and
// decoded in-process so paths containing non-ASCII characters behave the
// same on every platform.
func Load(path string) (*Frame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// EncodePNG renders the frame as PNG bytes.
func (f *Frame) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.ToImage()); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// SavePNG writes the frame to a PNG file.
func (f *Frame) SavePNG(path string) error {
	data, err := f.EncodePNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing PNG %s: %w", path, err)
	}
	return nil
}
