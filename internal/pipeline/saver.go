package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"demarcation-eraser/internal/logger"

	"github.com/disintegration/imaging"
)

const jpegQuality = 95

type imageSaver struct {
	logger logger.Logger
}

func (s *imageSaver) SaveToWriter(writer io.Writer, imageData *ImageData, format string) error {
	if imageData == nil || imageData.Image == nil {
		return fmt.Errorf("no image data to save")
	}

	if format == "" {
		format = imageData.Format
	}

	encoding := s.encodingFor(format)
	if err := imaging.Encode(writer, imageData.Image, encoding, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", encoding, err)
	}

	return nil
}

// SaveToPath writes the image in the format named by the path extension.
// A partially written file is removed on failure.
func (s *imageSaver) SaveToPath(path string, imageData *ImageData) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := s.SaveToWriter(file, imageData, strings.TrimPrefix(filepath.Ext(path), ".")); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close output file: %w", err)
	}

	return nil
}

// encodingFor maps a format name or extension to an encoder. Unknown
// formats fall back to PNG.
func (s *imageSaver) encodingFor(format string) imaging.Format {
	if format == "" {
		return imaging.PNG
	}

	encoding, err := imaging.FormatFromExtension(format)
	if err != nil {
		s.logger.Warning("ImageSaver", "format not supported, using PNG", map[string]interface{}{
			"requested_format": strings.ToUpper(format),
		})
		return imaging.PNG
	}
	return encoding
}
