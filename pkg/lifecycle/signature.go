package lifecycle

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/model"
)

// SignatureFormat is how a signature is sent to the backend.
type SignatureFormat string

const (
	// RawPaths sends the strokes as JSON.
	RawPaths SignatureFormat = "raw-paths"
	// RenderedImage sends a PNG drawn from the strokes.
	RenderedImage SignatureFormat = "rendered-image"
)

const (
	signatureField   = "signature"
	signaturePadding = 8
	maxSignatureSide = 2048
)

// EncodeSignature returns the attachment to upload and the value to keep in
// the order's signature field.
func EncodeSignature(sig *model.SignaturePath, format SignatureFormat) (api.Attachment, string, error) {
	if sig.Empty() {
		return api.Attachment{}, "", errSignatureRequired
	}
	if err := checkPoints(sig); err != nil {
		return api.Attachment{}, "", err
	}
	switch format {
	case RawPaths, "":
		data, err := json.Marshal(sig)
		if err != nil {
			return api.Attachment{}, "", fmt.Errorf("failed to encode signature: %w", err)
		}
		return api.BytesAttachment(signatureField, "signature.json", "application/json", data), string(data), nil
	case RenderedImage:
		data, err := RenderSignature(sig)
		if err != nil {
			return api.Attachment{}, "", err
		}
		stored := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		return api.BytesAttachment(signatureField, "signature.png", "image/png", data), stored, nil
	}
	return api.Attachment{}, "", fmt.Errorf("unknown signature format %q", format)
}

func checkPoints(sig *model.SignaturePath) error {
	for _, stroke := range sig.Strokes {
		for _, p := range stroke {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
				return fmt.Errorf("invalid signature point (%v, %v)", p.X, p.Y)
			}
		}
	}
	return nil
}

// RenderSignature draws the strokes black on white and encodes a PNG.
// Points outside the canvas are clamped onto its edge.
func RenderSignature(sig *model.SignaturePath) ([]byte, error) {
	if err := checkPoints(sig); err != nil {
		return nil, err
	}
	maxX, maxY := sig.Bounds()
	w := clampSide(maxX)
	h := clampSide(maxY)
	limit := model.Point{X: float64(w - 2*signaturePadding), Y: float64(h - 2*signaturePadding)}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	ink := color.Gray{Y: 0}

	for _, stroke := range sig.Strokes {
		for i, p := range stroke {
			if i == 0 {
				dot(img, clampPoint(p, limit), ink)
				continue
			}
			line(img, clampPoint(stroke[i-1], limit), clampPoint(p, limit), ink)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to render signature: %w", err)
	}
	return buf.Bytes(), nil
}

func clampSide(v float64) int {
	side := math.Ceil(v) + 2*signaturePadding
	if side > maxSignatureSide {
		return maxSignatureSide
	}
	return int(side)
}

func clampPoint(p, limit model.Point) model.Point {
	return model.Point{
		X: math.Min(math.Max(p.X, 0), limit.X),
		Y: math.Min(math.Max(p.Y, 0), limit.Y),
	}
}

func line(img *image.Gray, a, b model.Point, c color.Gray) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		dot(img, b, c)
		return
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		dot(img, model.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}, c)
	}
}

// dot paints a 2x2 pen tip.
func dot(img *image.Gray, p model.Point, c color.Gray) {
	x := int(math.Round(p.X)) + signaturePadding
	y := int(math.Round(p.Y)) + signaturePadding
	for dx := 0; dx < 2; dx++ {
		for dy := 0; dy < 2; dy++ {
			img.SetGray(x+dx, y+dy, c)
		}
	}
}
