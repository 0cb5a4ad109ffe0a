package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
)

// LoadTexture decodes a .tga, .png or .jpg/.jpeg file into NRGBA. The
// decoder is picked by extension; the engine's own .sps payloads and
// extensionless files are not decodable and return an error.
func LoadTexture(path string) (*image.NRGBA, error) {
	var decode func(io.Reader) (image.Image, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tga":
		decode = tga.Decode
	case ".png":
		decode = png.Decode
	case ".jpg", ".jpeg":
		decode = jpeg.Decode
	default:
		return nil, fmt.Errorf("texture: unsupported extension %q: %s", ext, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	img, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}
	return toNRGBA(img), nil
}

// toNRGBA converts any image to NRGBA. Sources without alpha come out opaque.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}
