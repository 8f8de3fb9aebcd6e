package colorspace

import (
	"image"
	"math"
)

// srgbD50 - столбцы матрицы линейный sRGB -> XYZ, адаптированные к D50 (Bradford).
var srgbD50 = [3]xyz{
	{0.4360747, 0.2225045, 0.0139322},
	{0.3850649, 0.7168786, 0.0971045},
	{0.1430804, 0.0606169, 0.7141733},
}

const (
	// matrixTolerance - допуск совпадения столбцов с sRGB для прозрачного прохода.
	matrixTolerance = 0.002
	// encodeSteps - размер таблицы линейный свет -> 8-битный sRGB.
	encodeSteps = 4096
)

var (
	xyzToSRGB = invert(columnsToMatrix(srgbD50))
	encodeLUT = buildEncodeLUT()
)

// Transform - скомпилированное преобразование профиль -> sRGB.
// Только читается после создания, безопасен для параллельного Apply.
type Transform struct {
	identity bool
	linear   [3][256]float64
	matrix   [3][3]float64
}

// Compile строит преобразование для разобранного профиля.
func Compile(p *Profile) *Transform {
	t := &Transform{}
	for ch := 0; ch < 3; ch++ {
		for v := 0; v < 256; v++ {
			t.linear[ch][v] = clamp01(p.Curves[ch].Eval(float64(v) / 255))
		}
	}

	if p.ColorSpace == "GRAY" {
		t.matrix = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	} else {
		t.matrix = multiply(xyzToSRGB, columnsToMatrix(p.Columns))
	}
	t.identity = isSRGB(p, t)
	return t
}

// Identity сообщает, что профиль численно совпадает с sRGB.
func (t *Transform) Identity() bool {
	return t.identity
}

// Apply преобразует пиксели на месте. Альфа-канал не меняется.
func (t *Transform) Apply(img *image.NRGBA) {
	if t.identity {
		return
	}
	b := img.Bounds()
	m := &t.matrix
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r := t.linear[0][row[i]]
			g := t.linear[1][row[i+1]]
			bl := t.linear[2][row[i+2]]
			row[i] = encode(m[0][0]*r + m[0][1]*g + m[0][2]*bl)
			row[i+1] = encode(m[1][0]*r + m[1][1]*g + m[1][2]*bl)
			row[i+2] = encode(m[2][0]*r + m[2][1]*g + m[2][2]*bl)
		}
	}
}

func encode(l float64) uint8 {
	if l <= 0 {
		return 0
	}
	if l >= 1 {
		return 255
	}
	return encodeLUT[int(l*encodeSteps+0.5)]
}

func buildEncodeLUT() *[encodeSteps + 1]uint8 {
	var lut [encodeSteps + 1]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(255 * srgbEncode(float64(i)/encodeSteps)))
	}
	return &lut
}

// isSRGB проверяет матрицу и кривые: столбцы в пределах matrixTolerance,
// кривые в пределах половины кодового значения.
func isSRGB(p *Profile, t *Transform) bool {
	if p.ColorSpace == "RGB " {
		for i := range p.Columns {
			for j := 0; j < 3; j++ {
				if math.Abs(p.Columns[i][j]-srgbD50[i][j]) > matrixTolerance {
					return false
				}
			}
		}
	}
	for ch := 0; ch < 3; ch++ {
		for v := 0; v < 256; v++ {
			if math.Abs(255*srgbEncode(t.linear[ch][v])-float64(v)) > 0.5 {
				return false
			}
		}
	}
	return true
}

func columnsToMatrix(c [3]xyz) [3][3]float64 {
	var m [3][3]float64
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[row][col] = c[col][row]
		}
	}
	return m
}

func multiply(a, b [3][3]float64) [3][3]float64 {
	var m [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				m[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return m
}

// invert обращает матрицу 3x3 через присоединённую матрицу.
func invert(m [3][3]float64) [3][3]float64 {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])

	var r [3][3]float64
	r[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det
	r[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det
	r[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det
	r[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / det
	r[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det
	r[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det
	r[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det
	r[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det
	r[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det
	return r
}
