package compositor

import (
	"image"
	"image/color"

	"tshirt-studio/core"

	"github.com/fogleman/gg"
)

var garmentAssets = map[core.GarmentColor]string{
	core.GarmentWhite: "/images/tshirt_base_white.png",
	core.GarmentBlack: "/images/tshirt_base_black.png",
	core.GarmentPink:  "/images/tshirt_base_pink.png",
}

// ResolveGarmentAsset maps a garment color to its base image reference.
func ResolveGarmentAsset(c core.GarmentColor) (string, bool) {
	ref, ok := garmentAssets[c]
	return ref, ok
}

var silhouetteFills = map[string]string{
	garmentAssets[core.GarmentWhite]: "#f4f4f2",
	garmentAssets[core.GarmentBlack]: "#222222",
	garmentAssets[core.GarmentPink]:  "#f5b8c9",
}

const (
	silhouetteWidth  = 600
	silhouetteHeight = 640
)

// silhouette draws a flat T-shirt for one of the garment asset references.
func silhouette(ref string) (image.Image, bool) {
	fill, ok := silhouetteFills[ref]
	if !ok {
		return nil, false
	}

	dc := gg.NewContext(silhouetteWidth, silhouetteHeight)
	dc.SetColor(color.Transparent)
	dc.Clear()

	outline := []gg.Point{
		{X: 210, Y: 40}, {X: 250, Y: 60}, {X: 300, Y: 68}, {X: 350, Y: 60}, {X: 390, Y: 40},
		{X: 560, Y: 130}, {X: 500, Y: 250}, {X: 450, Y: 225},
		{X: 450, Y: 610}, {X: 150, Y: 610},
		{X: 150, Y: 225}, {X: 100, Y: 250}, {X: 40, Y: 130},
	}
	dc.MoveTo(outline[0].X, outline[0].Y)
	for _, p := range outline[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
	dc.SetHexColor(fill)
	dc.FillPreserve()
	dc.SetHexColor("#9a9a9a")
	dc.SetLineWidth(3)
	dc.Stroke()

	// collar
	dc.DrawArc(300, 40, 56, 0, gg.Radians(180))
	dc.SetLineWidth(6)
	dc.Stroke()

	return dc.Image(), true
}
