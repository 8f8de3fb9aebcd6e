package resize

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
)

func TestDimensions(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		r            config.Resize
		wantW, wantH int
	}{
		{"disabled", 4000, 3000, config.Resize{Width: 10}, 4000, 3000},
		{"exact", 4000, 3000, config.Resize{Enabled: true, Width: 800, Height: 800}, 800, 800},
		{"width only", 4000, 3000, config.Resize{Enabled: true, Width: 800}, 800, 600},
		{"height only rounds", 1001, 1000, config.Resize{Enabled: true, Height: 3}, 3, 3},
		{"aspect never zero", 1000, 2, config.Resize{Enabled: true, Width: 10}, 10, 1},
		{"upscale width", 100, 50, config.Resize{Enabled: true, Width: 300}, 300, 150},
		{"scale", 1000, 500, config.Resize{Enabled: true, Scale: 0.25}, 250, 125},
		{"fit shrinks", 4000, 3000, config.Resize{Enabled: true, Width: 1920, Fit: true}, 1920, 1440},
		{"fit box", 3000, 4000, config.Resize{Enabled: true, Width: 300, Height: 300, Fit: true}, 225, 300},
		{"fit never enlarges", 200, 100, config.Resize{Enabled: true, Width: 1920, Fit: true}, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Dimensions(tt.srcW, tt.srcH, tt.r)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Dimensions() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 250, G: 20, B: 20, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{R: 10, G: 200, B: 90, A: 120}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestApply_SameSizeIsNoop(t *testing.T) {
	src := checker(32, 24)
	want := append([]byte(nil), src.Pix...)
	img := &codec.Image{Pixels: src}

	if Apply(img, 32, 24) {
		t.Error("Apply() reported a resize for equal dimensions")
	}
	if img.Pixels != src {
		t.Error("Apply() replaced the buffer")
	}
	if !bytes.Equal(img.Pixels.Pix, want) {
		t.Error("Apply() changed pixels")
	}
}

func TestApply_Resizes(t *testing.T) {
	img := &codec.Image{Pixels: checker(64, 48)}
	if !Apply(img, 16, 12) {
		t.Fatal("Apply() returned false")
	}
	if img.Width() != 16 || img.Height() != 12 {
		t.Errorf("size = %dx%d, want 16x12", img.Width(), img.Height())
	}
}

func TestScale_SolidColorPreserved(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 200, 100, 50, 255
	}

	dst := Scale(src, 23, 7)
	for i := 0; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 200 || dst.Pix[i+1] != 100 || dst.Pix[i+2] != 50 || dst.Pix[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want solid colour", i/4, dst.Pix[i:i+4])
		}
	}
}

func TestEstimateBytes(t *testing.T) {
	got := EstimateBytes(100, 100, config.Resize{Enabled: true, Width: 50, Height: 50})
	if want := int64(4 * (100*100 + 50*50)); got != want {
		t.Errorf("EstimateBytes() = %d, want %d", got, want)
	}
}
