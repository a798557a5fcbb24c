package imageconv

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestToJPEGCompositesTransparentPixelOverWhite(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0}) // fully transparent
	src.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(dir, "C0000.png")
	writePNG(t, path, src)

	jpegPath, err := ToJPEG(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "C0000.jpg"), jpegPath)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "source png should be removed")

	f, err := os.Open(jpegPath)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := jpeg.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := decoded.At(0, 0).RGBA()
	assert.InDelta(t, 0xffff, r, 2000)
	assert.InDelta(t, 0xffff, g, 2000)
	assert.InDelta(t, 0xffff, b, 2000)
}

func TestToJPEGOpaqueImageConvertsWithoutCompositing(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.Set(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}

	path := filepath.Join(dir, "C0001.png")
	writePNG(t, path, src)

	jpegPath, err := ToJPEG(path)
	require.NoError(t, err)

	_, err = os.Stat(jpegPath)
	require.NoError(t, err)
}
