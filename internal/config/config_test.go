package config

import (
	"path/filepath"
	"testing"

	"github.com/artemshloyda/imageconverter/internal/codec"
	"github.com/artemshloyda/imageconverter/internal/imgerr"
)

func TestDefaultConversion(t *testing.T) {
	c := DefaultConversion()

	// Проверяем значения по умолчанию
	if c.Quality != 85 {
		t.Errorf("Quality = %d, want 85", c.Quality)
	}
	if c.Metadata != MetadataStrip {
		t.Errorf("Metadata = %v, want strip", c.Metadata)
	}
	if c.Collision != CollisionFail {
		t.Errorf("Collision = %v, want fail", c.Collision)
	}
	if c.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", c.Workers)
	}
	if c.MaxInputBytes != 100<<20 {
		t.Errorf("MaxInputBytes = %d, want 100 MiB", c.MaxInputBytes)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default conversion is invalid: %v", err)
	}
}

func TestConversion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Conversion)
		wantErr bool
	}{
		{"defaults", func(c *Conversion) {}, false},
		{"quality 0", func(c *Conversion) { c.Quality = 0 }, false},
		{"quality 100", func(c *Conversion) { c.Quality = 100 }, false},
		{"quality negative", func(c *Conversion) { c.Quality = -1 }, true},
		{"quality too high", func(c *Conversion) { c.Quality = 101 }, true},
		{"zero workers", func(c *Conversion) { c.Workers = 0 }, true},
		{"unknown metadata policy", func(c *Conversion) { c.Metadata = "keep" }, true},
		{"unknown collision policy", func(c *Conversion) { c.Collision = "rename" }, true},
		{"empty find", func(c *Conversion) {
			c.Naming.Replacements = []Replacement{{Find: "", Replace: "x"}}
		}, true},
		{"prefix with separator", func(c *Conversion) { c.Naming.Prefix = "a/b" }, true},
		{"heic target passes validation", func(c *Conversion) { c.Format = codec.HEIC }, false},
		{"resize width only", func(c *Conversion) {
			c.Resize = Resize{Enabled: true, Width: 800}
		}, false},
		{"resize negative", func(c *Conversion) {
			c.Resize = Resize{Enabled: true, Width: -5, Height: 10}
		}, true},
		{"resize nothing set", func(c *Conversion) {
			c.Resize = Resize{Enabled: true}
		}, true},
		{"resize scale with width", func(c *Conversion) {
			c.Resize = Resize{Enabled: true, Width: 10, Scale: 0.5}
		}, true},
		{"resize fit with scale", func(c *Conversion) {
			c.Resize = Resize{Enabled: true, Scale: 0.5, Fit: true}
		}, true},
		{"disabled resize ignores values", func(c *Conversion) {
			c.Resize = Resize{Width: -1}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConversion()
			tt.modify(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !imgerr.Is(err, imgerr.InvalidConfig) {
				t.Errorf("Validate() kind = %v, want InvalidConfig", imgerr.KindOf(err))
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without inputs")
	}

	cfg.Inputs = []string{"photos"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg.InputExtensions = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without extensions")
	}
}

func TestConversion_Clone(t *testing.T) {
	c := DefaultConversion()
	c.Naming.Replacements = []Replacement{{Find: "a", Replace: "b"}}

	cp := c.Clone()
	c.Naming.Replacements[0].Find = "changed"

	if cp.Naming.Replacements[0].Find != "a" {
		t.Error("Clone() shares the replacements slice")
	}
}

func TestConversion_ParamsHash(t *testing.T) {
	a := DefaultConversion()
	b := DefaultConversion()

	if a.ParamsHash() != b.ParamsHash() {
		t.Error("equal conversions have different hashes")
	}

	// Имя файла не влияет на байты результата
	b.Naming.Prefix = "x_"
	if a.ParamsHash() != b.ParamsHash() {
		t.Error("naming must not change the params hash")
	}

	b.Quality = 50
	if a.ParamsHash() == b.ParamsHash() {
		t.Error("quality change did not change the hash")
	}
}

func TestConfig_HasInputExtension(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		ext  string
		want bool
	}{
		{"jpg", true},
		{".JPG", true},
		{"heif", true},
		{"gif", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := cfg.HasInputExtension(tt.ext); got != tt.want {
				t.Errorf("HasInputExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	c := DefaultConversion()
	c.Format = codec.WebP
	c.Quality = 0
	c.Resize = Resize{Enabled: true, Width: 640, Fit: true}
	c.Naming = Naming{
		Prefix:           "conv_",
		Replacements:     []Replacement{{Find: "IMG", Replace: "photo"}, {Find: " ", Replace: "_"}},
		ResolutionSuffix: true,
	}
	c.Collision = CollisionOverwrite

	s := c.ToSettings()
	if s[KeySchemaVersion] != "1" {
		t.Errorf("schema_version = %q", s[KeySchemaVersion])
	}

	got := DefaultConversion()
	if bad := got.ApplySettings(s); len(bad) != 0 {
		t.Fatalf("ApplySettings() bad keys = %v", bad)
	}
	if got.Params() != c.Params() || got.Naming.Prefix != "conv_" || len(got.Naming.Replacements) != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Collision != CollisionOverwrite {
		t.Errorf("Collision = %v", got.Collision)
	}
}

func TestApplySettings_Versioned(t *testing.T) {
	// Старые записи без новых полей и с незнакомыми ключами.
	c := DefaultConversion()
	bad := c.ApplySettings(map[string]string{
		KeySchemaVersion: "0",
		KeyFormat:        "png",
		KeyQuality:       "abc",
		KeyMetadata:      "keep-all",
		"theme":          "dark",
	})

	if c.Format != codec.PNG {
		t.Errorf("Format = %v, want png", c.Format)
	}
	if c.Quality != DefaultQuality {
		t.Errorf("Quality = %d, want default %d", c.Quality, DefaultQuality)
	}
	if c.Metadata != MetadataStrip {
		t.Errorf("Metadata = %v, want strip", c.Metadata)
	}
	if len(bad) != 2 || bad[0] != KeyMetadata || bad[1] != KeyQuality {
		t.Errorf("bad keys = %v", bad)
	}
}

func TestFileConfig_SaveAndApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Conversion.Format = codec.PNG
	cfg.Conversion.Quality = 0
	cfg.Conversion.OptimizePNG = true
	cfg.Conversion.KeepTree = false
	cfg.Conversion.Resize = Resize{Enabled: true, Scale: 0.5}
	cfg.Conversion.Naming.Prefix = "p_"
	cfg.DatasetLog = true

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	fc, err := LoadFromFile(path)
	if err != nil || fc == nil {
		t.Fatalf("LoadFromFile() = %v, %v", fc, err)
	}
	if fc.Version != FileVersion {
		t.Errorf("Version = %d", fc.Version)
	}

	got := DefaultConfig()
	if err := fc.ApplyToConfig(got); err != nil {
		t.Fatalf("ApplyToConfig() error = %v", err)
	}
	if got.Conversion.Params() != cfg.Conversion.Params() {
		t.Errorf("params = %s, want %s", got.Conversion.Params(), cfg.Conversion.Params())
	}
	if got.Conversion.KeepTree || got.Conversion.Naming.Prefix != "p_" || !got.DatasetLog {
		t.Errorf("unexpected config: %+v", got)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	fc, err := LoadFromFile(filepath.Join(t.TempDir(), "none.yaml"))
	if fc != nil || err != nil {
		t.Errorf("LoadFromFile(missing) = %v, %v; want nil, nil", fc, err)
	}
}

func TestFileConfig_BadFormat(t *testing.T) {
	fc := &FileConfig{Output: &OutputConfig{Format: "bmp"}}
	if err := fc.ApplyToConfig(DefaultConfig()); !imgerr.Is(err, imgerr.InvalidConfig) {
		t.Errorf("ApplyToConfig() error = %v, want InvalidConfig", err)
	}
}
