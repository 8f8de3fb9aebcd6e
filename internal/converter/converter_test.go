package converter

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artemshloyda/imageconverter/internal/cache"
	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/colorspace"
	"github.com/artemshloyda/imageconverter/internal/config"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
	"github.com/artemshloyda/imageconverter/internal/scanner"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func writeFile(t *testing.T, path string, data []byte) scanner.File {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	f, err := scanner.Stat(path, "")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newConverter(conv config.Conversion, opts ...Option) *Converter {
	return New(conv, codec.NewRegistry(), colorspace.NewManager(), opts...)
}

func pngConversion(outDir string) config.Conversion {
	conv := config.DefaultConversion()
	conv.Format = codec.PNG
	conv.Quality = 90
	conv.OutputDir = outDir
	return conv
}

func TestConvert_JPEGToPNG(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "in", "photo.jpg"), jpegBytes(t, gradient(40, 30)))
	out := filepath.Join(dir, "out")

	r := newConverter(pngConversion(out)).Convert(context.Background(), src)
	if r.Status != StatusSucceeded {
		t.Fatalf("Convert() = %v", r)
	}
	if r.Stage != Writing {
		t.Errorf("Stage = %v, want Writing", r.Stage)
	}
	if want := filepath.Join(out, "photo.png"); r.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", r.OutputPath, want)
	}
	data, err := os.ReadFile(r.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != r.BytesWritten {
		t.Errorf("BytesWritten = %d, file has %d", r.BytesWritten, len(data))
	}
	if f, _ := codec.Detect(data); f != codec.PNG {
		t.Errorf("output format = %v", f)
	}
	if _, err := os.Stat(TempPath(r.OutputPath)); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestConvert_HEICTargetSkipsDecode(t *testing.T) {
	conv := pngConversion(t.TempDir())
	conv.Format = codec.HEIC
	// Файла нет: ошибка чтения означала бы, что конвейер дошёл до декодирования.
	file := scanner.File{Path: filepath.Join(t.TempDir(), "missing.jpg"), RelPath: "missing.jpg"}

	r := newConverter(conv).Convert(context.Background(), file)
	if r.Status != StatusFailed || r.Kind() != imgerr.UnsupportedEncode {
		t.Fatalf("Convert() = %v, kind %v; want UnsupportedEncode", r, r.Kind())
	}
	if r.Stage != Queued {
		t.Errorf("Stage = %v, want Queued", r.Stage)
	}
}

func TestConvert_CorruptPNG(t *testing.T) {
	dir := t.TempDir()
	data := pngBytes(t, gradient(32, 32))
	src := writeFile(t, filepath.Join(dir, "broken.png"), data[:len(data)/2])

	r := newConverter(pngConversion(filepath.Join(dir, "out"))).Convert(context.Background(), src)
	if r.Status != StatusFailed || r.Kind() != imgerr.CorruptData {
		t.Fatalf("Convert() = %v, kind %v; want CorruptData", r, r.Kind())
	}
	if r.Stage != Decoding {
		t.Errorf("Stage = %v, want Decoding", r.Stage)
	}
}

func TestConvert_Collision(t *testing.T) {
	tests := []struct {
		name      string
		policy    config.CollisionPolicy
		wantKind  imgerr.Kind
		wantState Status
	}{
		{"fail", config.CollisionFail, imgerr.DestinationExists, StatusFailed},
		{"overwrite", config.CollisionOverwrite, imgerr.Unknown, StatusSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeFile(t, filepath.Join(dir, "a.jpg"), jpegBytes(t, gradient(8, 8)))
			out := filepath.Join(dir, "out")
			existing := filepath.Join(out, "a.png")
			writeFile(t, existing, []byte("old"))

			conv := pngConversion(out)
			conv.Collision = tt.policy
			r := newConverter(conv).Convert(context.Background(), src)
			if r.Status != tt.wantState || r.Kind() != tt.wantKind {
				t.Fatalf("Convert() = %v, kind %v", r, r.Kind())
			}

			data, _ := os.ReadFile(existing)
			replaced := string(data) != "old"
			if replaced != (tt.policy == config.CollisionOverwrite) {
				t.Errorf("existing file replaced = %v", replaced)
			}
		})
	}
}

func TestConvert_SameDestinationInBatch(t *testing.T) {
	dir := t.TempDir()
	// Одно имя в разных директориях при плоском выводе
	a := writeFile(t, filepath.Join(dir, "x", "img.jpg"), jpegBytes(t, gradient(8, 8)))
	b := writeFile(t, filepath.Join(dir, "y", "img.png"), pngBytes(t, gradient(8, 8)))

	conv := pngConversion(filepath.Join(dir, "out"))
	conv.KeepTree = false
	conv.Collision = config.CollisionOverwrite
	c := newConverter(conv)

	first := c.Convert(context.Background(), a)
	second := c.Convert(context.Background(), b)
	if first.Status != StatusSucceeded {
		t.Fatalf("first = %v", first)
	}
	if second.Kind() != imgerr.DestinationExists {
		t.Errorf("second kind = %v, want DestinationExists", second.Kind())
	}
}

func TestConvert_ResizeToOwnSizeIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := gradient(17, 9)
	file := writeFile(t, filepath.Join(dir, "g.png"), pngBytes(t, src))

	conv := pngConversion(filepath.Join(dir, "out"))
	conv.Resize = config.Resize{Enabled: true, Width: 17, Height: 9}
	r := newConverter(conv).Convert(context.Background(), file)
	if r.Status != StatusSucceeded {
		t.Fatalf("Convert() = %v", r)
	}

	f, err := os.Open(r.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	n := codec.ToNRGBA(got)
	if !bytes.Equal(n.Pix, src.Pix) {
		t.Error("pixels changed by same-size resize")
	}
}

func TestConvert_ResolutionSuffix(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "IMG_001.jpg"), jpegBytes(t, gradient(1600, 1200)))

	conv := pngConversion(filepath.Join(dir, "out"))
	conv.Resize = config.Resize{Enabled: true, Width: 800}
	conv.Naming = config.Naming{
		Prefix:           "conv_",
		Replacements:     []config.Replacement{{Find: "IMG", Replace: "photo"}},
		ResolutionSuffix: true,
	}
	r := newConverter(conv).Convert(context.Background(), file)
	if r.Status != StatusSucceeded {
		t.Fatalf("Convert() = %v", r)
	}
	if got := filepath.Base(r.OutputPath); got != "conv_photo_001_800x600.png" {
		t.Errorf("output name = %q", got)
	}
	if r.Width != 800 || r.Height != 600 {
		t.Errorf("size = %dx%d", r.Width, r.Height)
	}
}

func TestConvert_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "a.png"), pngBytes(t, gradient(4, 4)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newConverter(pngConversion(filepath.Join(dir, "out"))).Convert(ctx, file)
	if r.Status != StatusCancelled || r.Kind() != imgerr.Cancelled {
		t.Fatalf("Convert() = %v", r)
	}
	if r.Stage != Queued {
		t.Errorf("Stage = %v, want Queued", r.Stage)
	}
}

func TestConvert_InputSizeLimit(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "a.png"), pngBytes(t, gradient(64, 64)))

	conv := pngConversion(filepath.Join(dir, "out"))
	conv.MaxInputBytes = 16
	r := newConverter(conv).Convert(context.Background(), file)
	if r.Kind() != imgerr.IOFailure {
		t.Errorf("kind = %v, want IOFailure", r.Kind())
	}
}

// badProfileJPEG возвращает JPEG с нераспознаваемым ICC профилем.
func badProfileJPEG(t *testing.T) []byte {
	t.Helper()
	data := jpegBytes(t, gradient(8, 8))
	// APP2 ICC_PROFILE с мусором вместо профиля сразу после SOI
	payload := append([]byte("ICC_PROFILE\x00\x01\x01"), bytes.Repeat([]byte{0xAB}, 200)...)
	seg := []byte{0xFF, 0xE2, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(append(append([]byte{}, data[:2]...), append(seg, payload...)...), data[2:]...)
}

func TestConvert_BadProfileIsWarning(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "p.jpg"), badProfileJPEG(t))

	r := newConverter(pngConversion(filepath.Join(dir, "out"))).Convert(context.Background(), file)
	if r.Status != StatusSucceeded {
		t.Fatalf("Convert() = %v", r)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "ProfileParseError") {
		t.Errorf("Warnings = %v", r.Warnings)
	}
}

func TestConvert_CacheHit(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	data := jpegBytes(t, gradient(20, 10))
	a := writeFile(t, filepath.Join(dir, "a.jpg"), data)
	b := writeFile(t, filepath.Join(dir, "copy", "b.jpg"), data)

	conv := pngConversion(filepath.Join(dir, "out"))
	cv := newConverter(conv, WithCache(c))

	first := cv.Convert(context.Background(), a)
	second := cv.Convert(context.Background(), b)
	if first.Status != StatusSucceeded || second.Status != StatusSucceeded {
		t.Fatalf("results = %v / %v", first, second)
	}
	if first.Cached || !second.Cached {
		t.Errorf("cached = %v / %v, want false / true", first.Cached, second.Cached)
	}
	if second.Width != 20 || second.Height != 10 {
		t.Errorf("cached size = %dx%d", second.Width, second.Height)
	}
	x, _ := os.ReadFile(first.OutputPath)
	y, _ := os.ReadFile(second.OutputPath)
	if !bytes.Equal(x, y) {
		t.Error("cached output differs from fresh output")
	}
}

func TestConvert_CacheKeepsWarnings(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	data := badProfileJPEG(t)
	files := []scanner.File{
		writeFile(t, filepath.Join(dir, "a.jpg"), data),
		writeFile(t, filepath.Join(dir, "copy", "b.jpg"), data),
	}
	cv := newConverter(pngConversion(filepath.Join(dir, "out")), WithCache(c))

	for i, file := range files {
		r := cv.Convert(context.Background(), file)
		if r.Status != StatusSucceeded {
			t.Fatalf("[%d] Convert() = %v", i, r)
		}
		if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "ProfileParseError") {
			t.Errorf("[%d] Warnings = %v", i, r.Warnings)
		}
		if r.Cached {
			t.Errorf("[%d] result with warnings served from cache", i)
		}
	}
}

func TestTempPath(t *testing.T) {
	got := TempPath(filepath.Join("out", "photo.png"))
	if want := filepath.Join("out", "photo.converting.png"); got != want {
		t.Errorf("TempPath() = %q, want %q", got, want)
	}
	if !strings.Contains(filepath.Base(got), scanner.TempMarker) {
		t.Error("temp name is not recognised by the scanner")
	}
}
