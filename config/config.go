package config

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Expansion ExpansionConfig `yaml:"expansion"`
	Speech    SpeechConfig    `yaml:"speech"`
	Imagery   ImageryConfig   `yaml:"imagery"`
	Video     VideoConfig     `yaml:"video"`
	Assembly  AssemblyConfig  `yaml:"assembly"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Upload    UploadConfig    `yaml:"upload"`
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
}

type ExpansionConfig struct {
	Model              string `yaml:"model"`
	SegmentDurationSec int    `yaml:"segment_duration_sec"`
	TimeoutSec         int    `yaml:"timeout_sec"`
}

type SpeechConfig struct {
	Voice       string `yaml:"voice"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type ImageryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Model       string `yaml:"model"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	MaxAttempts int    `yaml:"max_attempts"`
	DefaultSeed uint32 `yaml:"default_seed"`
}

type VideoConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	FPS                int     `yaml:"fps"`
	DefaultDurationSec float64 `yaml:"default_duration_sec"`
}

type AssemblyConfig struct {
	ThumbnailWidth   int    `yaml:"thumbnail_width"`
	ThumbnailSpacing int    `yaml:"thumbnail_spacing"`
	ThumbnailX       int    `yaml:"thumbnail_x"`
	ThumbnailY       int    `yaml:"thumbnail_y"`
	FinalVideoName   string `yaml:"final_video_name"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

type UploadConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	DefaultLanguage   string `yaml:"default_language"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
}

// Segment duration bounds accepted from callers, matching the UI slider.
const (
	MinSegmentDurationSec = 2
	MaxSegmentDurationSec = 30
)

// Load reads a YAML config file and fills defaults for anything omitted.
// A missing file is not an error; defaults alone are a working setup.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Expansion.Model == "" {
		c.Expansion.Model = "gemini-2.0-flash-001"
	}
	if c.Expansion.SegmentDurationSec == 0 {
		c.Expansion.SegmentDurationSec = 5
	}
	c.Expansion.SegmentDurationSec = ClampSegmentDuration(c.Expansion.SegmentDurationSec)
	if c.Expansion.TimeoutSec == 0 {
		c.Expansion.TimeoutSec = 60
	}

	if c.Speech.Voice == "" {
		c.Speech.Voice = "en-US-GuyNeural"
	}
	if c.Speech.MaxAttempts == 0 {
		c.Speech.MaxAttempts = 3
	}

	if c.Imagery.Endpoint == "" {
		c.Imagery.Endpoint = "https://image.pollinations.ai"
	}
	if c.Imagery.Model == "" {
		c.Imagery.Model = "flux"
	}
	if c.Imagery.Width == 0 {
		c.Imagery.Width = 1280
	}
	if c.Imagery.Height == 0 {
		c.Imagery.Height = 720
	}
	if c.Imagery.MaxAttempts == 0 {
		c.Imagery.MaxAttempts = 3
	}
	if c.Imagery.DefaultSeed == 0 {
		c.Imagery.DefaultSeed = 42
	}

	if c.Video.Width == 0 {
		c.Video.Width = 1280
	}
	if c.Video.Height == 0 {
		c.Video.Height = 720
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 25
	}
	if c.Video.DefaultDurationSec == 0 {
		c.Video.DefaultDurationSec = 5
	}

	if c.Assembly.ThumbnailWidth == 0 {
		c.Assembly.ThumbnailWidth = 150
	}
	if c.Assembly.ThumbnailSpacing == 0 {
		c.Assembly.ThumbnailSpacing = 150
	}
	if c.Assembly.ThumbnailX == 0 {
		c.Assembly.ThumbnailX = 50
	}
	if c.Assembly.ThumbnailY == 0 {
		c.Assembly.ThumbnailY = 50
	}
	if c.Assembly.FinalVideoName == "" {
		c.Assembly.FinalVideoName = "final_video.mp4"
	}

	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}

	if c.Upload.Visibility == "" {
		c.Upload.Visibility = "private"
	}
	if c.Upload.CategoryID == "" {
		c.Upload.CategoryID = "1" // Film & Animation
	}
	if c.Upload.DefaultLanguage == "" {
		c.Upload.DefaultLanguage = "en"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.Paths.Output == "" {
		c.Paths.Output = "outputs"
	}
}

// ClampSegmentDuration bounds a caller-supplied target segment duration to
// the accepted range.
func ClampSegmentDuration(sec int) int {
	if sec < MinSegmentDurationSec {
		return MinSegmentDurationSec
	}
	if sec > MaxSegmentDurationSec {
		return MaxSegmentDurationSec
	}
	return sec
}
