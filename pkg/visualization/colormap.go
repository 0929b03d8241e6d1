package visualization

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colormap is a piecewise colour ramp over [0, 1], blended in Lab space
type Colormap struct {
	Name  string
	stops []colorful.Color
}

// Built-in colour ramps
var (
	Gray = newColormap("gray", "#000000", "#ffffff")
	Hot  = newColormap("hot", "#000000", "#b30000", "#ff8000", "#ffff00", "#ffffff")
	Bone = newColormap("bone", "#000000", "#545474", "#a8c8c8", "#ffffff")
)

func newColormap(name string, hex ...string) *Colormap {
	stops := make([]colorful.Color, len(hex))
	for i, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		stops[i] = c
	}
	return &Colormap{Name: name, stops: stops}
}

// ColormapByName returns one of the built-in ramps
func ColormapByName(name string) (*Colormap, error) {
	switch name {
	case "", "gray", "grey":
		return Gray, nil
	case "hot":
		return Hot, nil
	case "bone":
		return Bone, nil
	}
	return nil, fmt.Errorf("unknown colormap %q", name)
}

// At returns the colour for t in [0, 1]; t is clamped
func (c *Colormap) At(t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	segments := len(c.stops) - 1
	pos := t * float64(segments)
	i := int(pos)
	if i >= segments {
		i = segments - 1
	}
	blended := c.stops[i].BlendLab(c.stops[i+1], pos-float64(i)).Clamped()
	r, g, b := blended.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
