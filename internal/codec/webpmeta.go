package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Флаги заголовка VP8X.
const (
	vp8xFlagICC   = 0x20
	vp8xFlagAlpha = 0x10
	vp8xFlagEXIF  = 0x08
)

// riffChunk - чанк контейнера RIFF/WEBP.
type riffChunk struct {
	fourCC string
	data   []byte
}

// parseWebPChunks разбирает контейнер RIFF/WEBP на чанки.
func parseWebPChunks(data []byte) ([]riffChunk, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("не RIFF/WEBP контейнер")
	}
	end := 8 + int(binary.LittleEndian.Uint32(data[4:8]))
	if end > len(data) {
		end = len(data)
	}

	var chunks []riffChunk
	pos := 12
	for pos+8 <= end {
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > end {
			return nil, fmt.Errorf("чанк %q выходит за пределы файла", data[pos:pos+4])
		}
		chunks = append(chunks, riffChunk{fourCC: string(data[pos : pos+4]), data: data[body : body+size]})
		pos = body + size + size&1
	}
	return chunks, nil
}

// readWebPMetadata извлекает чанки ICCP и EXIF.
func readWebPMetadata(data []byte) (icc, exif []byte) {
	chunks, err := parseWebPChunks(data)
	if err != nil {
		return nil, nil
	}
	for _, c := range chunks {
		switch c.fourCC {
		case "ICCP":
			icc = append([]byte(nil), c.data...)
		case "EXIF":
			exif = append([]byte(nil), bytes.TrimPrefix(c.data, exifHeader)...)
		}
	}
	return icc, exif
}

// writeWebPMetadata переводит файл в расширенный формат VP8X и добавляет ICCP/EXIF.
func writeWebPMetadata(data []byte, width, height int, icc, exif []byte) ([]byte, error) {
	if len(icc) == 0 && len(exif) == 0 {
		return data, nil
	}
	chunks, err := parseWebPChunks(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("пустой WebP контейнер")
	}

	var vp8x []byte
	var body []riffChunk
	if chunks[0].fourCC == "VP8X" && len(chunks[0].data) >= 10 {
		vp8x = append([]byte(nil), chunks[0].data...)
		body = chunks[1:]
	} else {
		vp8x = make([]byte, 10)
		putUint24(vp8x[4:], uint32(width-1))
		putUint24(vp8x[7:], uint32(height-1))
		if hasLosslessAlpha(chunks) {
			vp8x[0] |= vp8xFlagAlpha
		}
		body = chunks
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(icc) + len(exif) + 64)
	out.WriteString("RIFF")
	out.Write([]byte{0, 0, 0, 0})
	out.WriteString("WEBP")

	if len(icc) > 0 {
		vp8x[0] |= vp8xFlagICC
	}
	if len(exif) > 0 {
		vp8x[0] |= vp8xFlagEXIF
	}
	writeRIFFChunk(&out, "VP8X", vp8x)
	if len(icc) > 0 {
		writeRIFFChunk(&out, "ICCP", icc)
	}
	for _, c := range body {
		if c.fourCC == "ICCP" || c.fourCC == "EXIF" {
			continue
		}
		writeRIFFChunk(&out, c.fourCC, c.data)
	}
	if len(exif) > 0 {
		writeRIFFChunk(&out, "EXIF", exif)
	}

	result := out.Bytes()
	binary.LittleEndian.PutUint32(result[4:8], uint32(len(result)-8))
	return result, nil
}

// hasLosslessAlpha читает бит alpha_is_used из заголовка VP8L.
func hasLosslessAlpha(chunks []riffChunk) bool {
	for _, c := range chunks {
		if c.fourCC == "VP8L" && len(c.data) >= 5 && c.data[0] == 0x2f {
			return binary.LittleEndian.Uint32(c.data[1:5])&(1<<28) != 0
		}
		if c.fourCC == "ALPH" {
			return true
		}
	}
	return false
}

func writeRIFFChunk(w *bytes.Buffer, fourCC string, data []byte) {
	var hdr [8]byte
	copy(hdr[:4], fourCC)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	w.Write(hdr[:])
	w.Write(data)
	if len(data)&1 == 1 {
		w.WriteByte(0)
	}
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
