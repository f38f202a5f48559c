package videobackend

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const idleFrameBanner = "ZEDCV_WAITING_FOR_UPLOAD"

// RenderIdleImage draws the placeholder shown to a viewer while no
// uploaded frames are arriving.
func RenderIdleImage(dims videoframe.Dimensions, label string, at time.Time) (image.Image, error) {
	canvas := renderBaseCanvas(dims)
	fontSize := float64(dims.H) / 16
	if fontSize < 8 {
		fontSize = 8
	}

	lineHeight := int(fontSize * 2)
	lines := []string{idleFrameBanner, label, at.Format("2006-01-02 15:04:05")}
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		if err := drawText(canvas, int(fontSize/2), lineHeight*(i+1), fontSize, line); err != nil {
			return nil, xerror.Errorf("unable to draw text onto idle frame: %w", err)
		}
	}
	return canvas, nil
}

func renderBaseCanvas(dims videoframe.Dimensions) *image.RGBA {
	w, h := dims.W, dims.H
	hw, hh := float64(w)/2, float64(h)/2
	r := math.Min(hw, hh) * 2 / 3
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), r * 1.5}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), r * 1.5}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), r * 1.5}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}
	return img
}

func drawText(canvas *image.RGBA, x, y int, size float64, text string) error {
	fontFace, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return err
	}
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: image.White,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    size,
			Hinting: font.HintingFull,
		}),
	}
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y),
	}
	fontDrawer.DrawString(text)
	return nil
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	d := math.Sqrt(dx*dx+dy*dy) / c.R
	if d > 1 {
		return 0
	}
	return 255
}
