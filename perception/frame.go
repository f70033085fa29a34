package perception

import (
	"image"
	"image/color"

	"github.com/zeu5/royale-rl/config"
	"golang.org/x/image/draw"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of frame inside r. The result keeps the frame's
// absolute coordinates, so regions expressed in screen space stay valid on
// cropped frames. Images without SubImage support are copied.
func Crop(frame image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(frame.Bounds())
	if si, ok := frame.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, frame, r.Min, draw.Src)
	return dst
}

// PixelMatches reports whether the pixel at pt is within tolerance of c on
// every channel. Points outside the frame never match.
func PixelMatches(frame image.Image, pt image.Point, c config.RGB, tolerance int) bool {
	if !pt.In(frame.Bounds()) {
		return false
	}
	px := color.NRGBAModel.Convert(frame.At(pt.X, pt.Y)).(color.NRGBA)
	return within(px.R, c.R, tolerance) && within(px.G, c.G, tolerance) && within(px.B, c.B, tolerance)
}

func within(a, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// gray returns the luminance of img as a row-major float slice together
// with the image bounds.
func gray(img image.Image) ([]float64, image.Rectangle) {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			for _, v := range src.Pix[i : i+b.Dx()] {
				out = append(out, float64(v))
			}
		}
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := src.PixOffset(b.Min.X, y)
			row := src.Pix[i : i+4*b.Dx()]
			for p := 0; p < len(row); p += 4 {
				r, g, bl := uint32(row[p])*0x101, uint32(row[p+1])*0x101, uint32(row[p+2])*0x101
				// same weights as color.GrayModel
				out = append(out, float64((19595*r+38470*g+7471*bl+1<<15)>>24))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				out = append(out, float64(g.Y))
			}
		}
	}
	return out, b
}
