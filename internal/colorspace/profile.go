// Package colorspace приводит пиксели со встроенным ICC профилем к sRGB.
//
// Поддерживаются матричные RGB профили (rXYZ/gXYZ/bXYZ + rTRC/gTRC/bTRC)
// и серые профили (kTRC). LUT профили (A2B0), CMYK и Lab не поддерживаются.
package colorspace

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	iccHeaderSize = 128
	iccMagicOff   = 36
)

// Ошибки разбора профиля.
var (
	ErrTruncated   = errors.New("ICC профиль обрезан")
	ErrNotICC      = errors.New("нет сигнатуры acsp")
	ErrUnsupported = errors.New("тип ICC профиля не поддерживается")
)

// xyz - тристимульное значение в PCS (D50).
type xyz [3]float64

// Profile - разобранный матричный профиль.
type Profile struct {
	// ColorSpace - сигнатура пространства данных ("RGB " или "GRAY").
	ColorSpace string

	// Version - старший номер версии ICC (2 или 4).
	Version int

	// Columns - столбцы матрицы RGB -> XYZ (D50). Для серых профилей не используются.
	Columns [3]xyz

	// Curves - кривые R, G, B (для серых профилей все три одинаковы).
	Curves [3]Curve
}

type tagEntry struct {
	offset, size uint32
}

// Parse разбирает ICC профиль.
func Parse(data []byte) (*Profile, error) {
	if len(data) < iccHeaderSize+4 {
		return nil, ErrTruncated
	}
	if string(data[iccMagicOff:iccMagicOff+4]) != "acsp" {
		return nil, ErrNotICC
	}

	p := &Profile{
		ColorSpace: string(data[16:20]),
		Version:    int(data[8]),
	}
	pcs := string(data[20:24])
	if pcs != "XYZ " {
		return nil, fmt.Errorf("%w: PCS %q", ErrUnsupported, pcs)
	}

	tags, err := readTagTable(data)
	if err != nil {
		return nil, err
	}

	switch p.ColorSpace {
	case "RGB ":
		for i, sig := range []string{"rXYZ", "gXYZ", "bXYZ"} {
			t, ok := tags[sig]
			if !ok {
				return nil, fmt.Errorf("%w: нет тега %s", ErrUnsupported, sig)
			}
			v, err := readXYZ(data, t)
			if err != nil {
				return nil, fmt.Errorf("тег %s: %w", sig, err)
			}
			p.Columns[i] = v
		}
		for i, sig := range []string{"rTRC", "gTRC", "bTRC"} {
			t, ok := tags[sig]
			if !ok {
				return nil, fmt.Errorf("%w: нет тега %s", ErrUnsupported, sig)
			}
			c, err := readCurve(data, t)
			if err != nil {
				return nil, fmt.Errorf("тег %s: %w", sig, err)
			}
			p.Curves[i] = c
		}
	case "GRAY":
		t, ok := tags["kTRC"]
		if !ok {
			return nil, fmt.Errorf("%w: нет тега kTRC", ErrUnsupported)
		}
		c, err := readCurve(data, t)
		if err != nil {
			return nil, fmt.Errorf("тег kTRC: %w", err)
		}
		p.Curves = [3]Curve{c, c, c}
	default:
		return nil, fmt.Errorf("%w: пространство %q", ErrUnsupported, p.ColorSpace)
	}
	return p, nil
}

func readTagTable(data []byte) (map[string]tagEntry, error) {
	count := binary.BigEndian.Uint32(data[iccHeaderSize:])
	if uint64(count)*12+iccHeaderSize+4 > uint64(len(data)) {
		return nil, ErrTruncated
	}
	tags := make(map[string]tagEntry, count)
	pos := iccHeaderSize + 4
	for i := uint32(0); i < count; i++ {
		e := tagEntry{
			offset: binary.BigEndian.Uint32(data[pos+4:]),
			size:   binary.BigEndian.Uint32(data[pos+8:]),
		}
		if uint64(e.offset)+uint64(e.size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: тег %q за пределами профиля", ErrTruncated, data[pos:pos+4])
		}
		tags[string(data[pos:pos+4])] = e
		pos += 12
	}
	return tags, nil
}

func tagBody(data []byte, t tagEntry, typ string, minLen uint32) ([]byte, error) {
	if t.size < minLen {
		return nil, ErrTruncated
	}
	body := data[t.offset : t.offset+t.size]
	if string(body[:4]) != typ {
		return nil, fmt.Errorf("%w: тип %q вместо %q", ErrUnsupported, body[:4], typ)
	}
	return body, nil
}

func readXYZ(data []byte, t tagEntry) (xyz, error) {
	body, err := tagBody(data, t, "XYZ ", 20)
	if err != nil {
		return xyz{}, err
	}
	return xyz{s15f16(body[8:]), s15f16(body[12:]), s15f16(body[16:])}, nil
}

func s15f16(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 65536
}

func u8f8(b []byte) float64 {
	return float64(binary.BigEndian.Uint16(b)) / 256
}
