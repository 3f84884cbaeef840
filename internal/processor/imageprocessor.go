// imageprocessor.go - Meal photo preprocessing before AI analysis

package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/bosocmputer/meal_calorie_gemini/configs"
)

// PreprocessMealPhoto normalizes a meal photo for the vision model: downscales
// oversized images, applies a light sharpen, and re-encodes. Color is always
// preserved - portion and ingredient recognition depends on it.
// Returns the processed image data and mime type.
func PreprocessMealPhoto(imagePath string) ([]byte, string, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}

	qualityScore := analyzePhotoQuality(img)
	if qualityScore < 40 {
		log.Printf("⚠️ Low photo quality score (%.0f/100) for %s, analysis confidence may suffer", qualityScore, filepath.Base(imagePath))
	}

	// Resize if too large (longest side capped). This keeps request payloads
	// small without losing enough detail to matter for portion estimation.
	maxDimension := configs.MAX_IMAGE_DIMENSION
	if maxDimension <= 0 {
		maxDimension = 2000
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxDimension || height > maxDimension {
		if width > height {
			img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
		}
	}

	// Light sharpening only. Aggressive contrast/grayscale passes help OCR but
	// wreck the color cues the model uses to identify foods.
	img = imaging.Sharpen(img, 1.0)

	var buf bytes.Buffer
	ext := strings.ToLower(filepath.Ext(imagePath))
	mimeType := "image/jpeg"

	switch ext {
	case ".png":
		err = png.Encode(&buf, img)
		mimeType = "image/png"
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		mimeType = "image/jpeg"
	}

	if err != nil {
		return nil, "", fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), mimeType, nil
}

// analyzePhotoQuality analyzes image and returns quality score (0-100)
func analyzePhotoQuality(img image.Image) float64 {
	bounds := img.Bounds()

	// Calculate average brightness and contrast
	var totalBrightness float64
	var minBrightness float64 = 255
	var maxBrightness float64 = 0
	pixelCount := 0

	// Sample pixels (every 10th pixel for performance)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			// Convert to 0-255 range
			brightness := (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3.0

			totalBrightness += brightness
			if brightness < minBrightness {
				minBrightness = brightness
			}
			if brightness > maxBrightness {
				maxBrightness = brightness
			}
			pixelCount++
		}
	}

	if pixelCount == 0 {
		return 0
	}

	avgBrightness := totalBrightness / float64(pixelCount)
	contrast := maxBrightness - minBrightness

	// Ideal: avgBrightness = 128, contrast = 200+
	brightnessScore := 100.0 - math.Abs(avgBrightness-128.0)/1.28
	contrastScore := math.Min(contrast/2.0, 100.0)

	// Weight: 40% brightness, 60% contrast
	return (brightnessScore * 0.4) + (contrastScore * 0.6)
}

// DetectMIMEType guesses the mime type from the file extension. Used when
// preprocessing is disabled and the raw upload is sent to the model as-is.
func DetectMIMEType(imagePath string) string {
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
