package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/frame"
)

// TesseractOCR shells out to the tesseract binary, feeding the cropped
// region as PNG on stdin. OCR runs are slow (hundreds of milliseconds) and
// are only invoked once per session, post-stop.
type TesseractOCR struct {
	binary   string
	language string
}

// NewTesseractOCR builds the adapter; an empty binary path means "tesseract"
// on $PATH.
func NewTesseractOCR(cfg config.OCRConfig) *TesseractOCR {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = "tesseract"
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{binary: binary, language: language}
}

// Recognize implements OCR.
func (t *TesseractOCR) Recognize(ctx context.Context, f *frame.Frame, roi frame.ROI) (string, error) {
	crop, err := f.CropROI(roi)
	if err != nil {
		return "", fmt.Errorf("cropping OCR region: %w", err)
	}
	png, err := crop.EncodePNG()
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", t.language, "--psm", "7")
	cmd.Stdin = bytes.NewReader(png)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}
