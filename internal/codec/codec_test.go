package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

// gradient строит непрозрачное тестовое изображение.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jpg", JPEG, false},
		{"JPEG", JPEG, false},
		{".png", PNG, false},
		{"webp", WebP, false},
		{"heif", HEIC, false},
		{"heic", HEIC, false},
		{"gif", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !imgerr.Is(err, imgerr.InvalidConfig) {
				t.Errorf("ParseFormat(%q) kind = %v, want InvalidConfig", tt.in, imgerr.KindOf(err))
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat_Capabilities(t *testing.T) {
	tests := []struct {
		format     Format
		wantDecode bool
		wantEncode bool
		wantExt    string
	}{
		{JPEG, true, true, "jpg"},
		{PNG, true, true, "png"},
		{WebP, true, true, "webp"},
		{HEIC, true, false, "heic"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			caps := tt.format.Capabilities()
			if caps.Decode != tt.wantDecode || caps.Encode != tt.wantEncode {
				t.Errorf("Capabilities() = %+v", caps)
			}
			if got := tt.format.Extension(); got != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got, tt.wantExt)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	img := gradient(8, 8)
	heif := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic\x00\x00\x00\x00mif1heic")...)

	tests := []struct {
		name    string
		data    []byte
		want    Format
		wantErr bool
	}{
		{"jpeg", encodeJPEG(t, img), JPEG, false},
		{"png", encodePNG(t, img), PNG, false},
		{"webp header", []byte("RIFF\x24\x00\x00\x00WEBPVP8L\x00\x00\x00\x00"), WebP, false},
		{"heic brand", heif, HEIC, false},
		{"truncated png", encodePNG(t, img)[:40], PNG, false},
		{"text", []byte("hello, world"), 0, true},
		{"empty", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Detect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !imgerr.Is(err, imgerr.UnsupportedFormat) {
					t.Errorf("kind = %v, want UnsupportedFormat", imgerr.KindOf(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry_EncodeHEICUnsupported(t *testing.T) {
	r := NewRegistry()
	if r.CanEncode(HEIC) {
		t.Fatal("CanEncode(HEIC) = true")
	}
	_, err := r.Encode(&Image{Pixels: gradient(2, 2)}, HEIC, EncodeOptions{Quality: 80})
	if !imgerr.Is(err, imgerr.UnsupportedEncode) {
		t.Errorf("Encode(HEIC) error = %v, want UnsupportedEncode", err)
	}
}

func TestRegistry_DecodeByContent(t *testing.T) {
	r := NewRegistry()
	// PNG данные с любым расширением декодируются как PNG.
	img, err := r.Decode(encodePNG(t, gradient(4, 3)))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Source != PNG || img.Width() != 4 || img.Height() != 3 {
		t.Errorf("Decode() = %v %dx%d", img.Source, img.Width(), img.Height())
	}
	if img.ColorSpace != ColorSpaceSRGB {
		t.Errorf("ColorSpace = %v, want srgb", img.ColorSpace)
	}
}

func TestRegistry_TruncatedPNGIsCorrupt(t *testing.T) {
	data := encodePNG(t, gradient(32, 32))
	_, err := NewRegistry().Decode(data[:len(data)/2])
	if !imgerr.Is(err, imgerr.CorruptData) {
		t.Errorf("Decode(truncated) error = %v, want CorruptData", err)
	}
}

// mutate копирует данные и применяет к копии порчу заголовка.
func mutate(t *testing.T, data []byte, marker string, fn func(b []byte, at int)) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	at := bytes.Index(out, []byte(marker))
	if at < 0 {
		t.Fatalf("marker %q not found", marker)
	}
	fn(out, at)
	return out
}

func TestRegistry_MalformedHeadersAreCorrupt(t *testing.T) {
	r := NewRegistry()
	jpg := encodeJPEG(t, gradient(16, 9))
	pngData := encodePNG(t, gradient(16, 9))
	lossless, err := r.Encode(&Image{Pixels: gradient(16, 9)}, WebP, EncodeOptions{Quality: 90, Lossless: true})
	if err != nil {
		t.Fatal(err)
	}
	withAlpha, err := r.Encode(&Image{Pixels: twoColours(16, 9)}, WebP, EncodeOptions{Quality: 80})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg truncated", jpg[:len(jpg)/2]},
		{"jpeg sof precision", mutate(t, jpg, "\xff\xc0", func(b []byte, at int) { b[at+4] = 12 })},
		{"jpeg sof components", mutate(t, jpg, "\xff\xc0", func(b []byte, at int) { b[at+9] = 7 })},
		{"png ihdr width", mutate(t, pngData, "IHDR", func(b []byte, at int) { b[at+4] = 0x7f })},
		{"png truncated", pngData[:len(pngData)/2]},
		{"webp truncated", lossless[:len(lossless)/2]},
		{"webp riff only", lossless[:12]},
		// Холст VP8X 1x1 меньше кадра VP8: альфа-канал короче пикселей.
		{"webp canvas smaller than frame", mutate(t, withAlpha, "VP8X", func(b []byte, at int) {
			for i := at + 12; i < at+18; i++ {
				b[i] = 0
			}
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.Decode(tt.data)
			if err == nil {
				t.Fatalf("Decode() = %dx%d, want error", img.Width(), img.Height())
			}
			if !imgerr.Is(err, imgerr.CorruptData) {
				t.Errorf("Decode() error = %v, want CorruptData", err)
			}
		})
	}
}

// panickingCodec падает с паникой и при декодировании, и при кодировании.
type panickingCodec struct{}

func (panickingCodec) Format() Format             { return PNG }
func (panickingCodec) Capabilities() Capabilities { return PNG.Capabilities() }

func (panickingCodec) Decode([]byte) (*Image, error) {
	var buf []byte
	_ = buf[3]
	return nil, nil
}

func (panickingCodec) Encode(*Image, EncodeOptions) ([]byte, error) {
	panic("encoder state lost")
}

func TestRegistry_CodecPanicIsError(t *testing.T) {
	r := NewRegistry()
	r.Register(panickingCodec{})

	if _, err := r.Decode(encodePNG(t, gradient(4, 4))); !imgerr.Is(err, imgerr.CorruptData) {
		t.Errorf("Decode() error = %v, want CorruptData", err)
	}
	_, err := r.Encode(&Image{Pixels: gradient(4, 4)}, PNG, EncodeOptions{})
	if !imgerr.Is(err, imgerr.EncodeFailure) {
		t.Errorf("Encode() error = %v, want EncodeFailure", err)
	}

	// Остальные кодеки реестра работают как прежде.
	if _, err := r.Encode(&Image{Pixels: gradient(4, 4)}, JPEG, EncodeOptions{Quality: 80}); err != nil {
		t.Errorf("Encode(JPEG) error = %v", err)
	}
}

func TestJPEG_EncodeIdempotent(t *testing.T) {
	r := NewRegistry()
	opts := EncodeOptions{Quality: 100}

	first, err := r.Encode(&Image{Pixels: gradient(33, 17)}, JPEG, opts)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := r.Decode(first)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	a, err := r.Encode(decoded, JPEG, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Encode(decoded, JPEG, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("re-encoding identical input produced different bytes")
	}
}

func TestJPEG_MetadataRoundTrip(t *testing.T) {
	icc := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 50000) // три APP2 сегмента
	exif := []byte("II*\x00\x08\x00\x00\x00\x00\x00\x00\x00\x00\x00")

	r := NewRegistry()
	data, err := r.Encode(&Image{Pixels: gradient(8, 8), ICC: icc, EXIF: exif}, JPEG, EncodeOptions{Quality: 80})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	img, err := r.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(img.ICC, icc) {
		t.Errorf("ICC length = %d, want %d", len(img.ICC), len(icc))
	}
	if !bytes.Equal(img.EXIF, exif) {
		t.Errorf("EXIF = %x, want %x", img.EXIF, exif)
	}
	if img.ColorSpace != ColorSpaceEmbedded {
		t.Errorf("ColorSpace = %v, want embedded-icc", img.ColorSpace)
	}
}

func TestPNG_WritesSRGBChunk(t *testing.T) {
	data, err := NewRegistry().Encode(&Image{Pixels: gradient(4, 4), ICC: []byte("ignored")}, PNG, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var types []string
	walkPNGChunks(data, func(typ string, _ []byte) bool {
		types = append(types, typ)
		return true
	})
	if len(types) < 2 || types[0] != "IHDR" || types[1] != "sRGB" {
		t.Errorf("chunks = %v, want IHDR, sRGB, ...", types)
	}
	for _, typ := range types {
		if typ == "iCCP" {
			t.Error("iCCP must not be written next to sRGB")
		}
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("stdlib cannot decode output: %v", err)
	}
}

func TestPNG_ReadsICCP(t *testing.T) {
	profile := bytes.Repeat([]byte("profile"), 40)
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, _ = zw.Write(profile)
	_ = zw.Close()

	data := encodePNG(t, gradient(2, 2))
	var out bytes.Buffer
	out.Write(data[:33])
	writePNGChunk(&out, "iCCP", append([]byte("test\x00\x00"), z.Bytes()...))
	out.Write(data[33:])

	img, err := NewRegistry().Decode(out.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(img.ICC, profile) {
		t.Errorf("ICC = %q, want %q", img.ICC, profile)
	}
}

func TestPNG_OptimizeIsLossless(t *testing.T) {
	tests := []struct {
		name      string
		img       *image.NRGBA
		wantColor byte
	}{
		{"two colours", twoColours(16, 16), 3},
		{"gray ramp", grayRamp(300, 2), 0},
		{"rgb gradient", gradient(40, 40), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := NewRegistry().Encode(&Image{Pixels: tt.img}, PNG, EncodeOptions{OptimizePNG: true})
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			// Тип цвета в IHDR: сигнатура 8 + длина 4 + тип 4 + ширина 4 + высота 4 + глубина 1.
			if got := data[25]; got != tt.wantColor {
				t.Errorf("IHDR color type = %d, want %d", got, tt.wantColor)
			}
			decoded, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("png.Decode: %v", err)
			}
			got := ToNRGBA(decoded)
			if !bytes.Equal(got.Pix, tt.img.Pix) {
				t.Error("optimized PNG changed pixel values")
			}
		})
	}
}

func TestWebPMetadata_WrapsSimpleContainer(t *testing.T) {
	// Минимальный VP8L заголовок: сигнатура и размеры 3x2 без альфы.
	vp8l := make([]byte, 5)
	vp8l[0] = 0x2f
	binary.LittleEndian.PutUint32(vp8l[1:], uint32(3-1)|uint32(2-1)<<14)

	var src bytes.Buffer
	src.WriteString("RIFF\x00\x00\x00\x00WEBP")
	writeRIFFChunk(&src, "VP8L", vp8l)
	data := src.Bytes()
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))

	icc := []byte("icc-bytes")
	out, err := writeWebPMetadata(data, 3, 2, icc, nil)
	if err != nil {
		t.Fatalf("writeWebPMetadata() error = %v", err)
	}

	chunks, err := parseWebPChunks(out)
	if err != nil {
		t.Fatalf("parseWebPChunks() error = %v", err)
	}
	if len(chunks) != 3 || chunks[0].fourCC != "VP8X" || chunks[1].fourCC != "ICCP" || chunks[2].fourCC != "VP8L" {
		t.Fatalf("unexpected chunk layout: %+v", chunks)
	}
	if chunks[0].data[0]&vp8xFlagICC == 0 {
		t.Error("VP8X ICC flag not set")
	}
	if chunks[0].data[0]&vp8xFlagAlpha != 0 {
		t.Error("VP8X alpha flag set for opaque VP8L")
	}
	if w := int(chunks[0].data[4]) | int(chunks[0].data[5])<<8 | int(chunks[0].data[6])<<16; w != 2 {
		t.Errorf("canvas width-1 = %d, want 2", w)
	}

	gotICC, _ := readWebPMetadata(out)
	if !bytes.Equal(gotICC, icc) {
		t.Errorf("readWebPMetadata() ICC = %q", gotICC)
	}
}

func TestWebP_LosslessRoundTrip(t *testing.T) {
	r := NewRegistry()
	src := gradient(16, 9)
	data, err := r.Encode(&Image{Pixels: src, ICC: []byte("profile")}, WebP, EncodeOptions{Quality: 90, Lossless: true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	img, err := r.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Source != WebP {
		t.Errorf("Source = %v, want webp", img.Source)
	}
	if !bytes.Equal(img.Pixels.Pix, src.Pix) {
		t.Error("lossless WebP changed pixel values")
	}
	if string(img.ICC) != "profile" {
		t.Errorf("ICC = %q, want %q", img.ICC, "profile")
	}
}

func twoColours(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if (x+y)%2 == 0 {
				c = color.NRGBA{B: 255, A: 128}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func grayRamp(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x % 256)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}
