package sheet

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// RasterizePDF renders every page of a PDF to an image at the given DPI.
// Scanned exams often arrive as multi-page PDFs; detection and extraction
// work on the rasterized pages.
func RasterizePDF(path string, dpi float64) ([]image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()

	if dpi <= 0 {
		dpi = 200
	}

	images := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d of %s: %w", n+1, path, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// WritePages saves page images as PNG files next to basePath: a single page
// goes to basePath itself, multiple pages get a _pageN suffix. Returns the
// written paths in page order.
func WritePages(images []image.Image, basePath string) ([]string, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no pages to write")
	}

	ext := filepath.Ext(basePath)
	stem := strings.TrimSuffix(basePath, ext)
	if ext == "" {
		ext = ".png"
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		path := basePath
		if len(images) > 1 {
			path = fmt.Sprintf("%s_page%d%s", stem, i+1, ext)
		}
		if err := writePNG(path, img); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
