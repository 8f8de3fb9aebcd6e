package codec

import (
	"bytes"
	"encoding/binary"
	"sort"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2

	// maxSegmentPayload - максимальная длина данных сегмента без поля длины.
	maxSegmentPayload = 0xFFFF - 2
)

var (
	exifHeader = []byte("Exif\x00\x00")
	iccHeader  = []byte("ICC_PROFILE\x00")
)

// jpegSegment - сегмент APPn/прочий с маркером и данными (без поля длины).
type jpegSegment struct {
	marker byte
	data   []byte
}

// walkJPEGSegments обходит сегменты до начала данных скана (SOS) или EOI.
func walkJPEGSegments(data []byte, fn func(seg jpegSegment) bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return
		}
		marker := data[pos+1]
		// Заполняющие 0xFF перед маркером.
		if marker == 0xFF {
			pos++
			continue
		}
		if marker == markerEOI || marker == markerSOS {
			return
		}
		// Маркеры без длины.
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		if length < 2 || pos+2+length > len(data) {
			return
		}
		if !fn(jpegSegment{marker: marker, data: data[pos+4 : pos+2+length]}) {
			return
		}
		pos += 2 + length
	}
}

// readJPEGMetadata извлекает EXIF (APP1) и ICC (APP2, с пересборкой частей).
func readJPEGMetadata(data []byte) (icc, exif []byte) {
	type iccChunk struct {
		seq  int
		data []byte
	}
	var chunks []iccChunk

	walkJPEGSegments(data, func(seg jpegSegment) bool {
		switch {
		case seg.marker == markerAPP1 && exif == nil && bytes.HasPrefix(seg.data, exifHeader):
			exif = append([]byte(nil), seg.data[len(exifHeader):]...)
		case seg.marker == markerAPP2 && bytes.HasPrefix(seg.data, iccHeader) && len(seg.data) > len(iccHeader)+2:
			seq := int(seg.data[len(iccHeader)])
			chunks = append(chunks, iccChunk{seq: seq, data: seg.data[len(iccHeader)+2:]})
		}
		return true
	})

	if len(chunks) == 0 {
		return nil, exif
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	// Неполный набор частей отдаётся как есть, разбор профиля сообщит об ошибке.
	for _, c := range chunks {
		icc = append(icc, c.data...)
	}
	return icc, exif
}

// writeJPEGMetadata вставляет APP1 (EXIF) и APP2 (ICC) сразу после SOI.
// EXIF, который не помещается в один сегмент, не записывается.
func writeJPEGMetadata(data, icc, exif []byte) []byte {
	if len(data) < 2 || (len(icc) == 0 && len(exif) == 0) {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(icc) + len(exif) + 64)
	out.Write(data[:2])

	if len(exif) > 0 && len(exifHeader)+len(exif) <= maxSegmentPayload {
		writeSegment(&out, markerAPP1, exifHeader, exif)
	}

	if len(icc) > 0 {
		const chunkSize = maxSegmentPayload - 14
		count := (len(icc) + chunkSize - 1) / chunkSize
		if count <= 255 {
			for i := 0; i < count; i++ {
				end := (i + 1) * chunkSize
				if end > len(icc) {
					end = len(icc)
				}
				header := append(append([]byte(nil), iccHeader...), byte(i+1), byte(count))
				writeSegment(&out, markerAPP2, header, icc[i*chunkSize:end])
			}
		}
	}

	out.Write(data[2:])
	return out.Bytes()
}

// writeSegment пишет маркер, длину и данные сегмента.
func writeSegment(w *bytes.Buffer, marker byte, header, payload []byte) {
	w.WriteByte(0xFF)
	w.WriteByte(marker)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(2+len(header)+len(payload)))
	w.Write(length[:])
	w.Write(header)
	w.Write(payload)
}
