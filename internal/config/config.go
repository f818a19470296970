package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the resolved configuration.
type Config struct {
	DB            string
	Endpoint      string
	Online        bool
	UploadTimeout time.Duration
	ProbeInterval time.Duration
	MetricsAddr   string
	LogLevel      string
	Replay        Replay
	Receiver      Receiver
}

// Replay controls route replay timing.
type Replay struct {
	Step      time.Duration
	Animate   time.Duration
	Frame     time.Duration
	MaxPoints int
	SpeedKmh  float64
}

// Receiver configures the command-center server.
type Receiver struct {
	Addr string
	DB   string
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// raw mirrors the schema field names for decoding.
type raw struct {
	DB            string `json:"db"`
	Endpoint      string `json:"endpoint"`
	Online        bool   `json:"online"`
	UploadTimeout string `json:"upload_timeout"`
	ProbeInterval string `json:"probe_interval"`
	MetricsAddr   string `json:"metrics_addr"`
	LogLevel      string `json:"log_level"`
	Replay        struct {
		Step      string  `json:"step"`
		Animate   string  `json:"animate"`
		Frame     string  `json:"frame"`
		MaxPoints int     `json:"max_points"`
		SpeedKmh  float64 `json:"speed_kmh"`
	} `json:"replay"`
	Receiver struct {
		Addr string `json:"addr"`
		DB   string `json:"db"`
	} `json:"receiver"`
}

// Issue is one schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports every schema violation found in a file.
type ValidationError struct {
	File   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path != "" {
			parts = append(parts, is.Path+": "+is.Message)
		} else {
			parts = append(parts, is.Message)
		}
	}
	name := e.File
	if name == "" {
		name = "config"
	}
	return fmt.Sprintf("%s: %s", name, strings.Join(parts, "; "))
}

// IsValidationError reports whether err carries schema violations.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Default returns the schema defaults.
func Default() Config {
	cfg, err := Parse("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and validates a configuration file. An empty path returns
// Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data as the file named by path. The extension selects the
// decoder: .cue for CUE, .yaml, .yml and .json for YAML (a JSON superset).
func Parse(path string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	input, err := compileInput(ctx, path, data)
	if err != nil {
		return Config{}, err
	}

	v := def.Unify(input)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, toValidationError(path, err)
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return r.resolve(path)
}

func compileInput(ctx *cue.Context, path string, data []byte) (cue.Value, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case len(data) == 0:
		return ctx.CompileString("{}"), nil
	case ext == ".cue":
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, toValidationError(path, err)
		}
		return v, nil
	case ext == ".yaml" || ext == ".yml" || ext == ".json":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return cue.Value{}, &ValidationError{File: path, Issues: []Issue{{Message: err.Error()}}}
		}
		if m == nil {
			m = map[string]any{}
		}
		v := ctx.Encode(m)
		if err := v.Err(); err != nil {
			return cue.Value{}, toValidationError(path, err)
		}
		return v, nil
	default:
		return cue.Value{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
}

func toValidationError(path string, err error) error {
	ve := &ValidationError{File: path}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve.Issues = append(ve.Issues, Issue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(ve.Issues) == 0 {
		ve.Issues = append(ve.Issues, Issue{Message: err.Error()})
	}
	return ve
}

func (r raw) resolve(path string) (Config, error) {
	ve := &ValidationError{File: path}
	dur := func(field, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			ve.Issues = append(ve.Issues, Issue{Path: field, Message: err.Error()})
			return 0
		}
		if d <= 0 {
			ve.Issues = append(ve.Issues, Issue{Path: field, Message: "must be positive"})
		}
		return d
	}

	cfg := Config{
		DB:            r.DB,
		Endpoint:      strings.TrimRight(r.Endpoint, "/"),
		Online:        r.Online,
		UploadTimeout: dur("upload_timeout", r.UploadTimeout),
		ProbeInterval: dur("probe_interval", r.ProbeInterval),
		MetricsAddr:   r.MetricsAddr,
		LogLevel:      r.LogLevel,
		Replay: Replay{
			Step:      dur("replay.step", r.Replay.Step),
			Animate:   dur("replay.animate", r.Replay.Animate),
			Frame:     dur("replay.frame", r.Replay.Frame),
			MaxPoints: r.Replay.MaxPoints,
			SpeedKmh:  r.Replay.SpeedKmh,
		},
		Receiver: Receiver{
			Addr: r.Receiver.Addr,
			DB:   r.Receiver.DB,
		},
	}
	if len(ve.Issues) > 0 {
		return Config{}, ve
	}
	return cfg, nil
}
