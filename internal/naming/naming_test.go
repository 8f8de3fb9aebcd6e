package naming

import (
	"path/filepath"
	"testing"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/config"
)

func TestComputeName(t *testing.T) {
	tests := []struct {
		name   string
		source string
		rules  config.Naming
		target codec.Format
		w, h   int
		want   string
	}{
		{
			name:   "prefix, replace and suffix",
			source: "IMG_001.jpg",
			rules: config.Naming{
				Prefix:           "conv_",
				Replacements:     []config.Replacement{{Find: "IMG", Replace: "photo"}},
				ResolutionSuffix: true,
			},
			target: codec.PNG,
			w:      800,
			h:      600,
			want:   "conv_photo_001_800x600.png",
		},
		{
			name:   "no rules",
			source: "/a/b/holiday.HEIC",
			target: codec.JPEG,
			want:   "holiday.jpg",
		},
		{
			name:   "replacements are sequential",
			source: "abc.png",
			rules: config.Naming{Replacements: []config.Replacement{
				{Find: "a", Replace: "b"},
				{Find: "bb", Replace: "X"},
			}},
			target: codec.WebP,
			want:   "Xc.webp",
		},
		{
			name:   "replacement sees prefix",
			source: "x.png",
			rules: config.Naming{
				Prefix:       "tmp_",
				Replacements: []config.Replacement{{Find: "tmp", Replace: "final"}},
			},
			target: codec.PNG,
			want:   "final_x.png",
		},
		{
			name:   "replacement empties name",
			source: "IMG.jpg",
			rules:  config.Naming{Replacements: []config.Replacement{{Find: "IMG", Replace: ""}}},
			target: codec.PNG,
			want:   "",
		},
		{
			name:   "replacement introduces separator",
			source: "a_b.jpg",
			rules:  config.Naming{Replacements: []config.Replacement{{Find: "_", Replace: "/"}}},
			target: codec.PNG,
			want:   "",
		},
		{
			name:   "dot dot",
			source: "x.jpg",
			rules:  config.Naming{Replacements: []config.Replacement{{Find: "x", Replace: ".."}}},
			target: codec.PNG,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeName(tt.source, tt.rules, tt.target, tt.w, tt.h)
			if got != tt.want {
				t.Errorf("ComputeName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		rel      string
		out      string
		keepTree bool
		want     string
	}{
		{"alongside source", "/photos/2024/a.jpg", "2024/a.jpg", "", true, "/photos/2024/a.png"},
		{"flat output", "/photos/2024/a.jpg", "2024/a.jpg", "/out", false, "/out/a.png"},
		{"keep tree", "/photos/2024/a.jpg", "2024/a.jpg", "/out", true, "/out/2024/a.png"},
		{"top level file", "/photos/a.jpg", "a.jpg", "/out", true, "/out/a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Destination(filepath.FromSlash(tt.src), filepath.FromSlash(tt.rel),
				filepath.FromSlash(tt.out), tt.keepTree, "a.png")
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("Destination() = %q, want %q", got, tt.want)
			}
		})
	}
}
