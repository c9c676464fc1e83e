package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"PoseSilhouette/pose"
)

var (
	IndicatorColor = color.NRGBA{R: 0, G: 128, B: 0, A: 255}
	Background     = color.White
)

const ringWidth = 2.0

// Canvas draws overlays on top of a silhouette guide that has been fitted to
// the overlay coordinate space.
type Canvas struct {
	silhouette image.Image
}

// NewCanvas fits silhouette into the overlay area, keeping its aspect ratio.
// A nil silhouette gives a plain background.
func NewCanvas(silhouette image.Image) *Canvas {
	if silhouette != nil {
		silhouette = imaging.Fit(silhouette, pose.SilhouetteWidth, pose.SilhouetteHeight, imaging.Lanczos)
	}
	return &Canvas{silhouette: silhouette}
}

// LoadCanvas reads the silhouette from path. An empty path is allowed.
func LoadCanvas(path string) (*Canvas, error) {
	if path == "" {
		return NewCanvas(nil), nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load silhouette: %w", err)
	}
	return NewCanvas(img), nil
}

// Draw rasterizes ov. Each indicator is a ring inscribed in its square.
func (c *Canvas) Draw(ov pose.Overlay) image.Image {
	dc := gg.NewContext(ov.Width, ov.Height)
	dc.SetColor(Background)
	dc.Clear()
	if c.silhouette != nil {
		dc.DrawImageAnchored(c.silhouette, ov.Width/2, ov.Height/2, 0.5, 0.5)
	}
	dc.SetColor(IndicatorColor)
	dc.SetLineWidth(ringWidth)
	for _, ind := range ov.Indicators {
		cx, cy := ind.Center()
		dc.DrawCircle(cx, cy, ind.Width/2)
		dc.Stroke()
	}
	return dc.Image()
}

func (c *Canvas) EncodePNG(w io.Writer, ov pose.Overlay) error {
	return imaging.Encode(w, c.Draw(ov), imaging.PNG)
}
