// Package imageconv converts exploded-cache PNG tiles to JPEG in place,
// for basemaps configured with ImageType JPEG. Codec work stays on the
// standard image/png and image/jpeg packages (the same split the pack's
// own tile encoders use - see DESIGN.md); compositing an alpha channel
// onto an opaque background uses image/draw, the primitive every
// higher-level imaging library in the ecosystem itself wraps.
package imageconv

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
)

// Quality is the fixed JPEG quality used for every conversion, matching
// the pipeline's PNG->JPEG conversion rule.
const Quality = 75

// ToJPEG converts the PNG tile at pngPath to a JPEG with the same stem
// and a .jpg extension. If the source has an alpha channel, it is
// composited over opaque white using the alpha channel as the mask;
// otherwise the RGB channels are used directly. The source file is
// removed on success. Returns the new path.
func ToJPEG(pngPath string) (string, error) {
	f, err := os.Open(pngPath)
	if err != nil {
		return "", fmt.Errorf("opening %s for conversion: %w", pngPath, err)
	}

	src, err := png.Decode(f)
	closeErr := f.Close()
	if err != nil {
		return "", fmt.Errorf("decoding png %s: %w", pngPath, err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing %s: %w", pngPath, closeErr)
	}

	flattened := flatten(src)

	jpegPath := strings.TrimSuffix(pngPath, ".png") + ".jpg"
	out, err := os.Create(jpegPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", jpegPath, err)
	}

	if err := jpeg.Encode(out, flattened, &jpeg.Options{Quality: Quality}); err != nil {
		out.Close()
		return "", fmt.Errorf("encoding jpeg %s: %w", jpegPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", jpegPath, err)
	}

	if err := os.Remove(pngPath); err != nil {
		return "", fmt.Errorf("removing source png %s: %w", pngPath, err)
	}

	return jpegPath, nil
}

// flatten composites src over opaque white if it carries an alpha
// channel, otherwise returns it unchanged.
func flatten(src image.Image) image.Image {
	if !hasAlpha(src) {
		return src
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)
	return dst
}

func hasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return true
			}
		}
	}
	return false
}
