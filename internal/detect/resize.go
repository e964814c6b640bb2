package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// minResizedDim is the smallest dimension worth downscaling to. Images that
// would land below this stay at original size; the detector needs pixels.
const minResizedDim = 300

// ResizeForDetection downscales an image by factor to speed up detection.
// Returns the JPEG-encoded scaled image and the effective scale that was
// applied (1.0 when the image was left untouched), so callers can map
// detected boxes back to original coordinates.
func ResizeForDetection(data []byte, factor float64) ([]byte, float64, error) {
	if factor >= 1.0 {
		return data, 1.0, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	newWidth := int(float64(bounds.Dx()) * factor)
	newHeight := int(float64(bounds.Dy()) * factor)
	if newWidth < minResizedDim || newHeight < minResizedDim {
		return data, 1.0, nil
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, 0, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), factor, nil
}

// ScaleBox maps a bounding box detected on a downscaled image back to the
// original pixel coordinates.
func ScaleBox(box [4]int, scale float64) [4]int {
	if scale == 1.0 || scale <= 0 {
		return box
	}
	inv := 1.0 / scale
	return [4]int{
		int(float64(box[0]) * inv),
		int(float64(box[1]) * inv),
		int(float64(box[2]) * inv),
		int(float64(box[3]) * inv),
	}
}

// Dimensions decodes just the image header and returns width and height.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
