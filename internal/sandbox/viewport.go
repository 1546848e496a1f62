package sandbox

import (
	"strconv"
	"strings"
)

// Viewport is a preview device size. A zero Width means full width.
type Viewport struct {
	Name   string
	Width  int
	Height int
	Mobile bool
}

// Preview viewports.
var (
	Desktop = Viewport{Name: "desktop", Width: 0, Height: 900}
	Tablet  = Viewport{Name: "tablet", Width: 768, Height: 1024}
	Mobile  = Viewport{Name: "mobile", Width: 375, Height: 812, Mobile: true}
)

// Viewports lists the preview modes in display order.
func Viewports() []Viewport {
	return []Viewport{Desktop, Tablet, Mobile}
}

// ViewportFor resolves a view mode name; unknown names fall back to desktop.
func ViewportFor(name string) Viewport {
	for _, v := range Viewports() {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return Desktop
}

// CSSWidth is the iframe width for the viewport.
func (v Viewport) CSSWidth() string {
	if v.Width == 0 {
		return "100%"
	}
	return strconv.Itoa(v.Width) + "px"
}

// PixelWidth is the emulated device width; desktop uses 1280.
func (v Viewport) PixelWidth() int {
	if v.Width == 0 {
		return 1280
	}
	return v.Width
}
