package ocr

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// EnhanceForOCR writes a grayscale, contrast-boosted, sharpened copy of an
// image to a temp PNG. The returned cleanup removes it.
func EnhanceForOCR(path string) (string, func(), error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	f, err := os.CreateTemp("", "invoice-enhanced-*.png")
	if err != nil {
		return "", nil, err
	}
	out := f.Name()
	cleanup := func() { _ = os.Remove(out) }

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode enhanced image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return out, cleanup, nil
}
