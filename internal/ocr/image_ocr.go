package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.FileKindImage, Method: "image-ocr", Pages: 1}
	txt, err := e.ocrImage(ctx, path)
	if err != nil {
		return res, err
	}
	res.Text = txt
	return res, nil
}

// ocrImage runs tesseract on one image, preprocessing it first when enabled.
// A failed preprocessing step falls back to the original image.
func (e *Extractor) ocrImage(ctx context.Context, path string) (string, error) {
	if e.cfg.Preprocess {
		enhanced, cleanup, err := EnhanceForOCR(path)
		if err != nil {
			e.logger.Warn("ocr.preprocess.failed", "path", path, "error", err)
		} else {
			defer cleanup()
			path = enhanced
		}
	}

	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
