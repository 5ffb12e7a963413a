package utils

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

func HalfToFloat(h uint16) float32 {
	return float16.Frombits(h).Float32()
}

func FloatToHalf(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// TenBitShifted unpacks a 10-10-10-2 word. xyz are mapped from [0,1023] to about [-1,1],
// w from [0,3] to [0,1].
func TenBitShifted(v uint32) mgl32.Vec4 {
	x := float32(v&0x3ff) - 511
	y := float32((v>>10)&0x3ff) - 511
	z := float32((v>>20)&0x3ff) - 511
	w := float32(v >> 30)
	return mgl32.Vec4{x / 512, y / 512, z / 512, w / 3}
}

// PackTenBit is the inverse of TenBitShifted for xyz in [-1,1].
func PackTenBit(v mgl32.Vec3, w uint32) uint32 {
	var r uint32
	for i := 2; i >= 0; i-- {
		c := int32(v[i]*512 + 511 + 0.5)
		if c < 0 {
			c = 0
		} else if c > 0x3ff {
			c = 0x3ff
		}
		r = r<<10 | uint32(c)
	}
	return r | (w&3)<<30
}

// EngineToGLTF converts from the engine Z-up basis to the Y-up output basis.
func EngineToGLTF(x, y, z float32) mgl32.Vec3 {
	return mgl32.Vec3{x, z, -y}
}

// NormalizeSafe returns v unchanged when it has no length.
func NormalizeSafe(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

func Dequantize(raw int16, scale, offset float32) float32 {
	return float32(raw)/32767*scale + offset
}
