package colorspace

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

const (
	srgbDescription = "sRGB IEC61966-2.1"
	srgbCopyright   = "No copyright, use freely"
	srgbCurvePoints = 1024
)

var (
	srgbOnce    sync.Once
	srgbProfile []byte
)

// SRGBProfile возвращает каноничный sRGB профиль ICC v2.
// Срез общий, изменять его нельзя.
func SRGBProfile() []byte {
	srgbOnce.Do(func() {
		srgbProfile = buildSRGBProfile()
	})
	return srgbProfile
}

type profileTag struct {
	sig  string
	body []byte
}

func buildSRGBProfile() []byte {
	trc := curvTag()
	tags := []profileTag{
		{"desc", descTag(srgbDescription)},
		{"cprt", textTag(srgbCopyright)},
		{"wtpt", xyzTag(xyz{0.9642, 1.0, 0.8249})},
		{"rXYZ", xyzTag(srgbD50[0])},
		{"gXYZ", xyzTag(srgbD50[1])},
		{"bXYZ", xyzTag(srgbD50[2])},
		{"rTRC", trc},
		{"gTRC", trc},
		{"bTRC", trc},
	}
	return assembleProfile("RGB ", tags)
}

// assembleProfile собирает заголовок, таблицу тегов и тела тегов.
// Теги с общим телом записываются один раз.
func assembleProfile(colorSpace string, tags []profileTag) []byte {
	tableEnd := iccHeaderSize + 4 + 12*len(tags)
	var data bytes.Buffer
	data.Write(make([]byte, tableEnd))

	type placed struct{ offset, size int }
	offsets := make(map[*byte]placed)
	entries := make([]placed, len(tags))
	for i, t := range tags {
		// Кривые TRC ссылаются на одно и то же тело.
		if p, ok := offsets[&t.body[0]]; ok {
			entries[i] = p
			continue
		}
		p := placed{offset: data.Len(), size: len(t.body)}
		data.Write(t.body)
		for data.Len()%4 != 0 {
			data.WriteByte(0)
		}
		offsets[&t.body[0]] = p
		entries[i] = p
	}

	out := data.Bytes()
	be := binary.BigEndian
	be.PutUint32(out[0:], uint32(len(out)))
	be.PutUint32(out[8:], 0x02100000)
	copy(out[12:], "mntr")
	copy(out[16:], colorSpace)
	copy(out[20:], "XYZ ")
	be.PutUint16(out[24:], 2000)
	be.PutUint16(out[26:], 1)
	be.PutUint16(out[28:], 1)
	copy(out[36:], "acsp")
	putXYZ(out[68:], xyz{0.9642, 1.0, 0.8249})

	be.PutUint32(out[iccHeaderSize:], uint32(len(tags)))
	pos := iccHeaderSize + 4
	for i, t := range tags {
		copy(out[pos:], t.sig)
		be.PutUint32(out[pos+4:], uint32(entries[i].offset))
		be.PutUint32(out[pos+8:], uint32(entries[i].size))
		pos += 12
	}
	return out
}

func xyzTag(v xyz) []byte {
	b := make([]byte, 20)
	copy(b, "XYZ ")
	putXYZ(b[8:], v)
	return b
}

func putXYZ(b []byte, v xyz) {
	for i, f := range v {
		binary.BigEndian.PutUint32(b[4*i:], uint32(int32(math.Round(f*65536))))
	}
}

func textTag(s string) []byte {
	b := make([]byte, 8, 8+len(s)+1)
	copy(b, "text")
	b = append(b, s...)
	return append(b, 0)
}

// descTag строит textDescriptionType версии 2: ASCII, пустые Unicode и ScriptCode.
func descTag(s string) []byte {
	var b bytes.Buffer
	b.WriteString("desc")
	b.Write(make([]byte, 4))
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)+1))
	b.Write(n[:])
	b.WriteString(s)
	b.WriteByte(0)
	b.Write(make([]byte, 4+4)) // язык и длина Unicode
	b.Write(make([]byte, 2+1)) // код ScriptCode и длина
	b.Write(make([]byte, 67))  // буфер ScriptCode
	return b.Bytes()
}

func curvTag() []byte {
	b := make([]byte, 12+2*srgbCurvePoints)
	copy(b, "curv")
	binary.BigEndian.PutUint32(b[8:], srgbCurvePoints)
	for i := 0; i < srgbCurvePoints; i++ {
		v := srgbDecode(float64(i) / (srgbCurvePoints - 1))
		binary.BigEndian.PutUint16(b[12+2*i:], uint16(math.Round(v*65535)))
	}
	return b
}
