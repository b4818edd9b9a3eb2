package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/bridge"
	"demarcation-eraser/internal/opencv/conversion"
	"demarcation-eraser/internal/opencv/memory"
	"demarcation-eraser/internal/opencv/safe"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

type imageLoader struct {
	memoryManager *memory.Manager
	logger        logger.Logger
}

func (l *imageLoader) LoadFromPath(path string) (*ImageData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	imageData, err := l.LoadFromBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	imageData.Path = path

	return imageData, nil
}

// LoadFromBytes decodes data into a BGR Mat. format is a hint, usually the
// file extension; the header decides when they disagree.
func (l *imageLoader) LoadFromBytes(data []byte, format string) (*ImageData, error) {
	config, detected, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unrecognised image data: %w", err)
	}

	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", config.Width, config.Height)
	}

	decoded, err := l.decode(data)
	if err != nil {
		return nil, err
	}
	defer decoded.Close()

	safeMat, err := l.memoryManager.Track(decoded.GetMat(), "loaded_image")
	if err != nil {
		return nil, fmt.Errorf("failed to create safe Mat: %w", err)
	}

	img, err := bridge.MatToImage(safeMat)
	if err != nil {
		safeMat.Close()
		return nil, fmt.Errorf("Mat to image conversion failed: %w", err)
	}

	actualFormat := determineActualFormat(format, detected)
	imageData := &ImageData{
		Image:    img,
		Mat:      safeMat,
		Width:    safeMat.Cols(),
		Height:   safeMat.Rows(),
		Channels: safeMat.Channels(),
		Format:   actualFormat,
	}

	l.logger.Debug("ImageLoader", "image decoded", map[string]interface{}{
		"width":    imageData.Width,
		"height":   imageData.Height,
		"channels": imageData.Channels,
		"format":   actualFormat,
	})

	return imageData, nil
}

// decode tries OpenCV first and falls back to the Go decoders for formats
// the OpenCV build lacks (GIF). The result is always BGR.
func (l *imageLoader) decode(data []byte) (*safe.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil {
		if !mat.Empty() {
			return safe.Adopt(mat, "decoded_image")
		}
		mat.Close()
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	converted, err := bridge.ImageToMat(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert decoded image: %w", err)
	}
	defer converted.Close()

	l.logger.Debug("ImageLoader", "decoded without OpenCV", nil)
	return conversion.ConvertToBGR(converted)
}

func determineActualFormat(hint, detected string) string {
	switch strings.ToLower(strings.TrimPrefix(hint, ".")) {
	case "tiff", "tif":
		return "tiff"
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "bmp":
		return "bmp"
	case "gif":
		return "gif"
	default:
		if detected != "" {
			return detected
		}
		return "unknown"
	}
}
