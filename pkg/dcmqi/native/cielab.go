package native

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// sRGB primaries to CIE XYZ, D65 white
var (
	rgbToXYZ = mat.NewDense(3, 3, []float64{
		0.4124564, 0.3575761, 0.1804375,
		0.2126729, 0.7151522, 0.0721750,
		0.0193339, 0.1191920, 0.9503041,
	})
	xyzToRGB = mat.NewDense(3, 3, []float64{
		3.2404542, -1.5371385, -0.4985314,
		-0.9692660, 1.8760108, 0.0415560,
		0.0556434, -0.2040259, 1.0572252,
	})
	whiteD65 = [3]float64{0.95047, 1.0, 1.08883}
)

const labDelta = 6.0 / 29.0

// RGBToCIELab converts an sRGB color in [0,1] to the 16 bit scaled CIELab
// triple of RecommendedDisplayCIELabValue
func RGBToCIELab(rgb [3]float64) [3]uint16 {
	lin := make([]float64, 3)
	for i, c := range rgb {
		c = math.Min(math.Max(c, 0), 1)
		if c <= 0.04045 {
			lin[i] = c / 12.92
		} else {
			lin[i] = math.Pow((c+0.055)/1.055, 2.4)
		}
	}
	var xyz mat.VecDense
	xyz.MulVec(rgbToXYZ, mat.NewVecDense(3, lin))

	f := func(t float64) float64 {
		if t > labDelta*labDelta*labDelta {
			return math.Cbrt(t)
		}
		return t/(3*labDelta*labDelta) + 4.0/29.0
	}
	fx, fy, fz := f(xyz.AtVec(0)/whiteD65[0]), f(xyz.AtVec(1)/whiteD65[1]), f(xyz.AtVec(2)/whiteD65[2])
	l, a, b := 116*fy-16, 500*(fx-fy), 200*(fy-fz)
	return [3]uint16{
		scale16(l * 65535 / 100),
		scale16((a + 128) * 65535 / 255),
		scale16((b + 128) * 65535 / 255),
	}
}

// CIELabToRGB inverts RGBToCIELab
func CIELabToRGB(lab [3]uint16) [3]float64 {
	l := float64(lab[0]) * 100 / 65535
	a := float64(lab[1])*255/65535 - 128
	b := float64(lab[2])*255/65535 - 128

	finv := func(t float64) float64 {
		if t > labDelta {
			return t * t * t
		}
		return 3 * labDelta * labDelta * (t - 4.0/29.0)
	}
	fy := (l + 16) / 116
	xyz := mat.NewVecDense(3, []float64{
		whiteD65[0] * finv(fy+a/500),
		whiteD65[1] * finv(fy),
		whiteD65[2] * finv(fy-b/200),
	})
	var lin mat.VecDense
	lin.MulVec(xyzToRGB, xyz)

	var rgb [3]float64
	for i := range rgb {
		c := lin.AtVec(i)
		if c <= 0.0031308 {
			c *= 12.92
		} else {
			c = 1.055*math.Pow(c, 1/2.4) - 0.055
		}
		rgb[i] = math.Min(math.Max(c, 0), 1)
	}
	return rgb
}

func scale16(v float64) uint16 {
	return uint16(math.Round(math.Min(math.Max(v, 0), 65535)))
}
