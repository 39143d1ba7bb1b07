package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// jpegQuality is used when re-encoding resized JPEG output.
const jpegQuality = 92

// ResizeRaster decodes a PNG/JPEG image and rescales it to the requested
// dimensions with Catmull-Rom interpolation. When only one dimension is
// given the other is derived from the source aspect ratio. If the image
// already matches, the original bytes are returned untouched.
func ResizeRaster(data []byte, format Format, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("source image has zero dimensions")
	}

	// Preserve aspect ratio when one dimension is unspecified.
	switch {
	case width > 0 && height <= 0:
		height = int(float64(width) * float64(srcH) / float64(srcW))
	case height > 0 && width <= 0:
		width = int(float64(height) * float64(srcW) / float64(srcH))
	case width <= 0 && height <= 0:
		return data, nil
	}
	if width == srcW && height == srcH {
		return data, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)

	buf := &bytes.Buffer{}
	switch format {
	case FormatPNG:
		if err := png.Encode(buf, dst); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
	case FormatJPG:
		if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot re-encode format: %s", format)
	}
	return buf.Bytes(), nil
}
