package config

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	flowerrors "github.com/flowline-dev/flowline/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Options captures runtime settings for the demo shell. Pipeline
// definitions themselves are assembled in code; this file only tunes the
// surrounding process.
type Options struct {
	LogLevel       string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	HumanReadable  bool   `yaml:"human_readable"`
	MaxParallel    int    `yaml:"max_parallel" validate:"gte=0"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

// Defaults returns the options used when no file is supplied.
func Defaults() Options {
	return Options{
		LogLevel:      "info",
		HumanReadable: true,
	}
}

// Load reads, parses and validates an options file from disk.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, flowerrors.NewParseError(path, 0, err)
	}

	opts := Defaults()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, flowerrors.NewParseError(path, extractLine(err), err)
	}

	if err := Validate(&opts); err != nil {
		return nil, err
	}

	return &opts, nil
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// Validate performs schema validation on the options.
func Validate(opts *Options) error {
	if opts == nil {
		return flowerrors.NewValidationError("options", "options are nil", nil)
	}
	if err := validatorInstance().Struct(opts); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
			ve := ves[0]
			return flowerrors.NewValidationError(ve.Field(), fmt.Sprintf("failed %q validation", ve.Tag()), err)
		}
		return flowerrors.NewValidationError("options", err.Error(), err)
	}
	return nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}

	return line
}
