package pose

import (
	"time"

	iface "PoseSilhouette/interface"
)

const (
	SilhouetteWidth  = 300
	SilhouetteHeight = 400
	IndicatorSize    = 40
)

// Indicator is a square anchored at its top-left corner, in silhouette
// coordinates.
type Indicator struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center is the keypoint position the indicator was built from.
func (i Indicator) Center() (float64, float64) {
	return i.X + i.Width/2, i.Y + i.Height/2
}

type Overlay struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Indicators []Indicator `json:"indicators"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// IndicatorFor centers a fixed-size square on kp. Coordinates are not clipped.
func IndicatorFor(kp iface.Keypoint) Indicator {
	half := float64(IndicatorSize) / 2
	return Indicator{
		X:      kp.X - half,
		Y:      kp.Y - half,
		Width:  IndicatorSize,
		Height: IndicatorSize,
	}
}

// Render maps the first pose of ps to indicators. Only ps[0] is used.
func Render(ps iface.PoseSet) Overlay {
	ov := Overlay{
		Width:      SilhouetteWidth,
		Height:     SilhouetteHeight,
		Indicators: []Indicator{},
	}
	if len(ps) == 0 {
		return ov
	}
	for _, kp := range Filter(ps[0]) {
		ov.Indicators = append(ov.Indicators, IndicatorFor(kp))
	}
	return ov
}
