package colorspace

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Curve - функция переноса канала: значение кодирования [0,1] -> линейный свет [0,1].
type Curve interface {
	Eval(x float64) float64
}

// gammaCurve - степенная кривая (curv с одним значением, para тип 0).
type gammaCurve float64

func (g gammaCurve) Eval(x float64) float64 {
	return math.Pow(x, float64(g))
}

// sampledCurve - табличная кривая curv, линейная интерполяция между узлами.
type sampledCurve []float64

func (s sampledCurve) Eval(x float64) float64 {
	pos := clamp01(x) * float64(len(s)-1)
	i := int(pos)
	if i >= len(s)-1 {
		return s[len(s)-1]
	}
	f := pos - float64(i)
	return s[i]*(1-f) + s[i+1]*f
}

// paraCurve - параметрическая кривая para типов 0-4.
// Параметры хранятся в полном виде g, a, b, c, d, e, f.
type paraCurve struct {
	g, a, b, c, d, e, f float64
}

func (p paraCurve) Eval(x float64) float64 {
	if x >= p.d {
		v := p.a*x + p.b
		if v < 0 {
			v = 0
		}
		return math.Pow(v, p.g) + p.e
	}
	return p.c*x + p.f
}

// paraParams - число параметров для типов 0-4.
var paraParams = [5]int{1, 3, 4, 5, 7}

func readCurve(data []byte, t tagEntry) (Curve, error) {
	if t.size < 12 {
		return nil, ErrTruncated
	}
	body := data[t.offset : t.offset+t.size]
	switch string(body[:4]) {
	case "curv":
		count := binary.BigEndian.Uint32(body[8:])
		if 12+2*uint64(count) > uint64(len(body)) {
			return nil, ErrTruncated
		}
		n := int(count)
		switch n {
		case 0:
			return gammaCurve(1), nil
		case 1:
			return gammaCurve(u8f8(body[12:])), nil
		}
		s := make(sampledCurve, n)
		for i := range s {
			s[i] = float64(binary.BigEndian.Uint16(body[12+2*i:])) / 65535
		}
		return s, nil

	case "para":
		fn := int(binary.BigEndian.Uint16(body[8:]))
		if fn >= len(paraParams) {
			return nil, fmt.Errorf("%w: para тип %d", ErrUnsupported, fn)
		}
		n := paraParams[fn]
		if 12+4*n > len(body) {
			return nil, ErrTruncated
		}
		var v [7]float64
		for i := 0; i < n; i++ {
			v[i] = s15f16(body[12+4*i:])
		}
		return newParaCurve(fn, v), nil
	}
	return nil, fmt.Errorf("%w: кривая типа %q", ErrUnsupported, body[:4])
}

// newParaCurve приводит параметры para типа fn к общей форме типа 4.
func newParaCurve(fn int, v [7]float64) paraCurve {
	g := v[0]
	switch fn {
	case 0:
		return paraCurve{g: g, a: 1}
	case 1:
		a, b := v[1], v[2]
		return paraCurve{g: g, a: a, b: b, d: threshold(a, b)}
	case 2:
		a, b, c := v[1], v[2], v[3]
		return paraCurve{g: g, a: a, b: b, d: threshold(a, b), e: c, f: c}
	case 3:
		return paraCurve{g: g, a: v[1], b: v[2], c: v[3], d: v[4]}
	}
	return paraCurve{g: g, a: v[1], b: v[2], c: v[3], d: v[4], e: v[5], f: v[6]}
}

// threshold возвращает -b/a, точку излома для para типов 1 и 2.
func threshold(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return -b / a
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// srgbDecode - EOTF sRGB.
func srgbDecode(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// srgbEncode - OETF sRGB.
func srgbEncode(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1/2.4) - 0.055
}
