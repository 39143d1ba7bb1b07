package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestResizeRaster(t *testing.T) {
	src := encodePNG(t, 100, 50)

	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"both dimensions", 200, 80, 200, 80},
		{"width only keeps aspect ratio", 200, 0, 200, 100},
		{"height only keeps aspect ratio", 0, 100, 200, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ResizeRaster(src, FormatPNG, tt.width, tt.height)
			require.NoError(t, err)
			w, h := decodeSize(t, out)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestResizeRasterNoOp(t *testing.T) {
	src := encodePNG(t, 64, 64)

	out, err := ResizeRaster(src, FormatPNG, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, src, out, "no target dimensions means the bytes pass through")

	out, err = ResizeRaster(src, FormatPNG, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, src, out, "matching dimensions mean the bytes pass through")
}

func TestResizeRasterJPEGOutput(t *testing.T) {
	src := encodePNG(t, 40, 40)

	out, err := ResizeRaster(src, FormatJPG, 20, 20)
	require.NoError(t, err)
	w, h := decodeSize(t, out)
	assert.Equal(t, 20, w)
	assert.Equal(t, 20, h)
	assert.Equal(t, "\xff\xd8", string(out[:2]), "output should be JPEG-encoded")
}

func TestResizeRasterErrors(t *testing.T) {
	_, err := ResizeRaster([]byte("not an image"), FormatPNG, 10, 10)
	assert.Error(t, err)

	_, err = ResizeRaster(encodePNG(t, 8, 8), FormatSVG, 4, 4)
	assert.Error(t, err, "vector formats cannot be re-encoded")
}
