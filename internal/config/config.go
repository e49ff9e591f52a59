package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Canvas settings
const (
	Width  = 800
	Height = 1000
	FPS    = 10
)

// Encoding settings
const (
	Quality    = 10 // Palette sampling stride: 1 samples every pixel, 10 every tenth
	MinQuality = 1
	MaxQuality = 30
	FrameCap   = 12 // Upper bound on output frames when a duration is requested
)

// Text layout
const (
	LineHeight  = 1.2 // Line height as a multiple of the font size
	FontSize    = 32
	TextColor   = "#333333"
	FontFamily  = "Go"
	FadeUpShift = 20 // Default fadeInUp travel distance in pixels
	GlowColor   = "#FFD700"
)

// Preview defaults
const (
	DefaultPreviewText = "Happy New Year!\nWishing you joy and good fortune"
	PreviewFileName    = "preview.gif"
	ThumbnailFileName  = "thumbnail.png"
)

// Server defaults
const (
	Addr          = ":8080"
	RenderTimeout = 60 * time.Second
	MaxUploadSize = 10 << 20
	MaxRenders    = 4 // Concurrent renders per server
)

// Config is the runtime configuration loaded from greetgif.yaml.
// Zero values fall back to the constants above.
type Config struct {
	TemplatesDir string   `yaml:"templates_dir"`
	CatalogPath  string   `yaml:"catalog_path"`  // SQLite template catalog, empty disables it
	DefaultPhoto string   `yaml:"default_photo"` // Empty uses the built-in placeholder
	PreviewText  string   `yaml:"preview_text"`
	FontDirs     []string `yaml:"font_dirs"`
	Workers      int      `yaml:"workers"` // 0 means GOMAXPROCS
	FrameCap     int      `yaml:"frame_cap"`

	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds the HTTP adapter settings.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size"`
	MaxRenders    int           `yaml:"max_renders"`
}

func (c *Config) setDefaults() {
	if c.TemplatesDir == "" {
		c.TemplatesDir = "templates"
	}
	if c.PreviewText == "" {
		c.PreviewText = DefaultPreviewText
	}
	if c.FrameCap == 0 {
		c.FrameCap = FrameCap
	}
	if c.Server.Addr == "" {
		c.Server.Addr = Addr
	}
	if c.Server.RenderTimeout == 0 {
		c.Server.RenderTimeout = RenderTimeout
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = MaxUploadSize
	}
	if c.Server.MaxRenders == 0 {
		c.Server.MaxRenders = MaxRenders
	}
}

// applyEnv overrides file values with GREETGIF_* environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("GREETGIF_TEMPLATES_DIR"); v != "" {
		c.TemplatesDir = v
	}
	if v := getenv("GREETGIF_CATALOG_PATH"); v != "" {
		c.CatalogPath = v
	}
	if v := getenv("GREETGIF_DEFAULT_PHOTO"); v != "" {
		c.DefaultPhoto = v
	}
	if v := getenv("GREETGIF_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("GREETGIF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("GREETGIF_WORKERS: invalid value %q", v)
		}
		c.Workers = n
	}
	return nil
}

// Default returns a Config populated with compiled defaults.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads the YAML config at path, applies environment overrides and
// fills in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(getenv); err != nil {
		return nil, err
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.FrameCap < 0 {
		return nil, fmt.Errorf("frame_cap must be >= 0, got %d", c.FrameCap)
	}
	if c.Server.MaxRenders < 0 || c.Server.MaxUploadSize < 0 {
		return nil, fmt.Errorf("server limits must be >= 0")
	}
	c.setDefaults()
	return c, nil
}

// ParseHexColor parses a 6 digit hex colour with an optional leading '#'.
func ParseHexColor(s string) (r, g, b uint8, err error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex colour %q: want 6 hex digits", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return raw[0], raw[1], raw[2], nil
}
