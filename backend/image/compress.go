package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	maxImageDimension = 512 // Maximum width or height in pixels
	imageQuality      = 85

	// MaxPixels bounds the decoded size of an upload. Headers declaring more
	// are rejected before any pixel buffer is allocated.
	MaxPixels = 40_000_000
)

// ErrMalformedImage is returned when no registered decoder accepts the payload.
var ErrMalformedImage = errors.New("malformed image payload")

// Validate checks that data is a decodable image and returns its format name.
func Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrMalformedImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("%w: %dx%d", ErrMalformedImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrMalformedImage, cfg.Width, cfg.Height, MaxPixels)
	}
	return format, nil
}

// GetImageOrientation returns the EXIF orientation of data, 1 when absent.
func GetImageOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// CorrectImageOrientation applies the EXIF orientation transform to img.
func CorrectImageOrientation(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Orientations 5-8 swap the axes.
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var nx, ny int
			switch orientation {
			case 2: // flip horizontal
				nx, ny = w-1-x, y
			case 3: // rotate 180
				nx, ny = w-1-x, h-1-y
			case 4: // flip vertical
				nx, ny = x, h-1-y
			case 5: // transpose
				nx, ny = y, x
			case 6: // rotate 90 clockwise
				nx, ny = h-1-y, x
			case 7: // transverse
				nx, ny = h-1-y, w-1-x
			case 8: // rotate 90 counter-clockwise
				nx, ny = y, w-1-x
			}
			out.Set(nx, ny, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// CompressImage returns an upright JPEG whose longest side is at most 512px.
// Images already within the limit and upright are returned unchanged.
func CompressImage(imageData []byte) ([]byte, error) {
	if _, err := Validate(imageData); err != nil {
		return nil, err
	}
	orientation := GetImageOrientation(imageData)

	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}

	if orientation != 1 {
		img = CorrectImageOrientation(img, orientation)
		log.Debugf("Applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxImageDimension && height <= maxImageDimension && orientation == 1 && format == "jpeg" {
		return imageData, nil
	}

	scale := 1.0
	if width > maxImageDimension || height > maxImageDimension {
		scale = float64(maxImageDimension) / float64(width)
		if s := float64(maxImageDimension) / float64(height); s < scale {
			scale = s
		}
	}
	newWidth := clamp(int(float64(width)*scale), 1, maxImageDimension)
	newHeight := clamp(int(float64(height)*scale), 1, maxImageDimension)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: imageQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode compressed image: %w", err)
	}

	log.Debugf("Image compressed: %d bytes -> %d bytes (%s %dx%d -> %dx%d, orientation: %d)",
		len(imageData), buf.Len(), format, width, height, newWidth, newHeight, orientation)
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
