package model

import (
	"context"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultPython    = "python3"
	DefaultPackage   = "fosslight_scanner"
	DefaultHeartbeat = 500 * time.Millisecond
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version     int          `json:"version" yaml:"version"` // fixed 0 for now
	Environment *Environment `json:"environment,omitempty" yaml:"environment,omitempty"`
	Scans       []Scan       `json:"scans,omitempty" yaml:"scans,omitempty"`
	Service     Service      `json:"service" yaml:"service"`
}

// Environment describes the isolated python environment hosting the scanner.
type Environment struct {
	Dir       *string `json:"dir,omitempty" yaml:"dir,omitempty"`             // nil => user cache dir
	Python    *string `json:"python,omitempty" yaml:"python,omitempty"`       // interpreter creating the venv
	Package   *string `json:"package,omitempty" yaml:"package,omitempty"`     // pip package to install
	Heartbeat *string `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"` // Go duration, e.g. 500ms
	Timeout   *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // per invocation, nil => none
}

// Scan is a named scan request executed by the run command.
type Scan struct {
	Name     string    `json:"name" yaml:"name"`
	Type     string    `json:"type" yaml:"type"` // "analyze" | "compare"
	Mode     []string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Subjects []Subject `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Output   *Output   `json:"output,omitempty" yaml:"output,omitempty"`
}

type Output struct {
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Request converts the configured scan into a request for the parser.
func (s Scan) Request() Request {
	req := Request{
		Type: RequestType(s.Type),
		Config: RequestConfig{
			Mode:     append([]string(nil), s.Mode...),
			Subjects: append([]Subject(nil), s.Subjects...),
		},
	}
	if req.Type == "" {
		req.Type = RequestAnalyze
	}
	if s.Output != nil {
		req.Config.OutputFormat = s.Output.Format
		req.Config.OutputPath = s.Output.Path
		req.Config.OutputFileName = s.Output.File
	}
	return req
}

type Service struct {
	Mode        string         `json:"mode" yaml:"mode"` // "manual" | "timer"
	Verbose     *bool          `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log         *string        `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"|path
	Dir         *string        `json:"dir,omitempty" yaml:"dir,omitempty"` // results directory
	Schedule    *TimerSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Repository  *Repository    `json:"repository,omitempty" yaml:"repository,omitempty"`
	ObjectStore *ObjectStore   `json:"objectstore,omitempty" yaml:"objectstore,omitempty"`
}

// Repository is an HTTP endpoint accepting scan results.
type Repository struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     string `json:"url" yaml:"url"`
}

// ObjectStore is an S3 compatible bucket receiving scan results.
type ObjectStore struct {
	Enabled   *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Endpoint  string  `json:"endpoint" yaml:"endpoint"` // host:port, no scheme
	AccessKey string  `json:"access_key" yaml:"access_key"`
	SecretKey string  `json:"secret_key" yaml:"secret_key"`
	Bucket    string  `json:"bucket" yaml:"bucket"`
	Region    *string `json:"region,omitempty" yaml:"region,omitempty"`
	UseSSL    *bool   `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
}

// DefaultConfig is stored when no configuration file exists.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Service: Service{
			Mode:    ServiceModeManual,
			Verbose: ptr(false),
			Log:     ptr(LogStderr),
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	if err := out.validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// validate checks rules which are awkward to express in the schema.
func (c Config) validate() error {
	if c.Service.Mode == ServiceModeTimer {
		if c.Service.Schedule == nil {
			return fmt.Errorf("service.schedule is required in %s mode", ServiceModeTimer)
		}
		if err := c.Service.Schedule.Validate(); err != nil {
			return fmt.Errorf("service.schedule: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.Scans))
	for _, s := range c.Scans {
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("scans: duplicate name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Heartbeat returns the configured provisioning heartbeat or the default.
func (c Config) Heartbeat() (time.Duration, error) {
	if c.Environment == nil || c.Environment.Heartbeat == nil {
		return DefaultHeartbeat, nil
	}
	return time.ParseDuration(*c.Environment.Heartbeat)
}

// Timeout returns the per invocation timeout, zero means none.
func (c Config) Timeout() (time.Duration, error) {
	if c.Environment == nil || c.Environment.Timeout == nil {
		return 0, nil
	}
	return time.ParseDuration(*c.Environment.Timeout)
}

// Get dereferences pt or returns dflt for nil.
func Get[T any](pt *T, dflt T) T {
	if pt == nil {
		return dflt
	}
	return *pt
}

func ptr[T any](v T) *T {
	return &v
}
