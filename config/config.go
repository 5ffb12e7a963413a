package config

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ValidationMode int

const (
	ValidationStrict ValidationMode = iota
	ValidationTryFix
	ValidationSkip
)

var validationNames = map[ValidationMode]string{
	ValidationStrict: "strict",
	ValidationTryFix: "tryfix",
	ValidationSkip:   "skip",
}

func (m ValidationMode) String() string {
	if s, ok := validationNames[m]; ok {
		return s
	}
	return "unknown"
}

func ParseValidationMode(s string) (ValidationMode, error) {
	for m, name := range validationNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return ValidationStrict, errors.Errorf("Unknown validation mode %q", s)
}

func (m ValidationMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *ValidationMode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseValidationMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Config struct {
	LodFilter         bool           `yaml:"lodFilter"`
	Binary            bool           `yaml:"binary"`
	Validation        ValidationMode `yaml:"validation"`
	WritePlaceholder  bool           `yaml:"writePlaceholder"`
	Decompressor      string         `yaml:"decompressor"`
	Workers           int            `yaml:"workers"`
	PreviewCacheLimit int            `yaml:"previewCacheLimit"`
	LogDir            string         `yaml:"logDir"`
}

func Default() Config {
	return Config{
		LodFilter:         true,
		Binary:            true,
		Validation:        ValidationStrict,
		WritePlaceholder:  true,
		Decompressor:      "lz4",
		Workers:           4,
		PreviewCacheLimit: 5,
	}
}

// Load reads a yaml config. Keys missing from the file keep their default value.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "Cannot read config %q", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "Cannot parse config %q", path)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c, nil
}

var (
	currentLock sync.RWMutex
	current     = Default()
)

func Get() Config {
	currentLock.RLock()
	defer currentLock.RUnlock()
	return current
}

func Set(c Config) {
	currentLock.Lock()
	defer currentLock.Unlock()
	current = c
}
