// Package signature holds the two-method signature capture used on the
// intake form: freehand drawing or image upload. Only the method the user
// most recently captured with feeds the hidden signature value.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"strings"

	// decoders for uploaded signatures
	_ "image/gif"
	_ "image/jpeg"
)

type Method string

const (
	MethodDraw   Method = "draw"
	MethodUpload Method = "upload"
)

var (
	ErrEmptySignature = errors.New("signature is empty")
	ErrUnknownMethod  = errors.New("unknown signature method")
	ErrNotAnImage     = errors.New("upload is not a supported image")
)

// MaxUploadBytes bounds uploaded signature images.
const MaxUploadBytes = 2 << 20

// MaxSide bounds the width and height of any signature image.
const MaxSide = 4000

// Capture is the signature sub-flow state of one session.
type Capture struct {
	// Mode is the method tab currently shown.
	Mode Method `msgpack:"mode" json:"mode"`
	// Active is the method whose image is wired to the hidden field.
	Active   Method `msgpack:"active" json:"active"`
	Drawn    string `msgpack:"drawn" json:"drawn,omitempty"`
	Uploaded string `msgpack:"uploaded" json:"uploaded,omitempty"`
}

// Select switches the shown method. The other method's image is kept.
func (c *Capture) Select(m Method) error {
	if m != MethodDraw && m != MethodUpload {
		return ErrUnknownMethod
	}
	c.Mode = m
	return nil
}

// SaveDrawing trims the whitespace around a canvas PNG and stores it as the
// active signature.
func (c *Capture) SaveDrawing(canvas []byte) error {
	img, err := decode(canvas)
	if err != nil {
		return err
	}
	url, err := trimAndEncode(img)
	if err != nil {
		return err
	}
	c.Mode = MethodDraw
	c.Drawn = url
	c.Active = MethodDraw
	return nil
}

// SaveDrawingDataURL accepts the canvas as a data URL, as browsers export it.
func (c *Capture) SaveDrawingDataURL(dataURL string) error {
	raw, err := DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	return c.SaveDrawing(raw)
}

// Upload stores an uploaded image as the active signature.
func (c *Capture) Upload(data []byte) error {
	if len(data) == 0 {
		return ErrEmptySignature
	}
	if len(data) > MaxUploadBytes {
		return ErrNotAnImage
	}
	img, err := decode(data)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	c.Mode = MethodUpload
	c.Uploaded = dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
	c.Active = MethodUpload
	return nil
}

// Clear resets the canvas. It only acts in draw mode, and it only empties
// the hidden value when drawing was the active method.
func (c *Capture) Clear() {
	if c.Mode != MethodDraw {
		return
	}
	c.Drawn = ""
}

// Value is the hidden signature value consumed by the payload merge.
func (c *Capture) Value() string {
	switch c.Active {
	case MethodDraw:
		return c.Drawn
	case MethodUpload:
		return c.Uploaded
	}
	return ""
}

// decode checks the declared size of data before decoding any pixels.
func decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxSide || cfg.Height > MaxSide {
		return nil, ErrNotAnImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}
	return img, nil
}

const dataURLPrefix = "data:image/png;base64,"

// DecodeDataURL extracts the bytes of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	i := strings.Index(s, ";base64,")
	if !strings.HasPrefix(s, "data:") || i < 0 {
		return nil, ErrNotAnImage
	}
	raw, err := base64.StdEncoding.DecodeString(s[i+len(";base64,"):])
	if err != nil {
		return nil, ErrNotAnImage
	}
	return raw, nil
}

func trimAndEncode(img image.Image) (string, error) {
	box, ok := inkBounds(img)
	if !ok {
		return "", ErrEmptySignature
	}
	out := image.NewNRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(out, out.Bounds(), img, box.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// inkBounds is the smallest rectangle holding every pixel that is neither
// transparent nor near-white.
func inkBounds(img image.Image) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0x1000 {
				continue
			}
			if r > 0xf000 && g > 0xf000 && bl > 0xf000 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
