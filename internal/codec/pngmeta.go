package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxICCSize ограничивает распакованный iCCP, чтобы не распаковывать zip-бомбу.
const maxICCSize = 4 << 20

// walkPNGChunks обходит чанки PNG до IEND. CRC не проверяется.
func walkPNGChunks(data []byte, fn func(typ string, body []byte) bool) {
	if !bytes.HasPrefix(data, pngSignature) {
		return
	}
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		end := pos + 8 + length
		if length < 0 || end+4 > len(data) {
			return
		}
		if !fn(typ, data[pos+8:end]) || typ == "IEND" {
			return
		}
		pos = end + 4
	}
}

// readPNGMetadata извлекает ICC (iCCP, zlib) и EXIF (eXIf).
func readPNGMetadata(data []byte) (icc, exif []byte) {
	walkPNGChunks(data, func(typ string, body []byte) bool {
		switch typ {
		case "iCCP":
			if p, ok := inflateICCP(body); ok {
				icc = p
			} else {
				// Битый iCCP передаётся дальше, чтобы разбор профиля выдал предупреждение.
				icc = append([]byte(nil), body...)
			}
		case "eXIf":
			exif = append([]byte(nil), bytes.TrimPrefix(body, exifHeader)...)
		}
		return true
	})
	return icc, exif
}

// inflateICCP распаковывает тело чанка iCCP: имя, \0, метод сжатия, zlib поток.
func inflateICCP(body []byte) ([]byte, bool) {
	nul := bytes.IndexByte(body, 0)
	if nul < 1 || nul+2 > len(body) || body[nul+1] != 0 {
		return nil, false
	}
	zr, err := zlib.NewReader(bytes.NewReader(body[nul+2:]))
	if err != nil {
		return nil, false
	}
	defer func() { _ = zr.Close() }()
	out, err := io.ReadAll(io.LimitReader(zr, maxICCSize))
	if err != nil || len(out) == 0 {
		return nil, false
	}
	return out, true
}

// writePNGMetadata вставляет sRGB (и eXIf при наличии) сразу после IHDR.
func writePNGMetadata(data, exif []byte) []byte {
	// Сигнатура + IHDR (4 длина + 4 тип + 13 данных + 4 CRC).
	const ihdrEnd = 8 + 25
	if len(data) < ihdrEnd || !bytes.HasPrefix(data, pngSignature) {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(exif) + 32)
	out.Write(data[:ihdrEnd])
	// Перцептуальный intent, как у каноничного sRGB профиля.
	writePNGChunk(&out, "sRGB", []byte{0})
	if len(exif) > 0 {
		writePNGChunk(&out, "eXIf", exif)
	}
	out.Write(data[ihdrEnd:])
	return out.Bytes()
}

// writePNGChunk пишет чанк с длиной и CRC.
func writePNGChunk(w *bytes.Buffer, typ string, body []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(body)))
	copy(hdr[4:], typ)
	w.Write(hdr[:])
	w.Write(body)
	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(body)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}
