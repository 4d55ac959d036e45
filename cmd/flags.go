package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sentra/internal/analysis"
)

// Output formats shared by commands that print structured data.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML}

// AnalysisFlags are shared by analyze and watch.
type AnalysisFlags struct {
	Kinds    []string
	Language string
}

func addAnalysisFlags(cmd *cobra.Command, flags *AnalysisFlags) {
	cmd.Flags().StringSliceVarP(&flags.Kinds, "kind", "k", nil,
		"Analyses to run: quality, security, performance, docs (default all)")
	cmd.Flags().StringVar(&flags.Language, "language", "", "Override language detection")
}

// ParseKinds converts --kind values, accepting comma separated lists.
func (f *AnalysisFlags) ParseKinds() ([]analysis.Kind, error) {
	var kinds []analysis.Kind
	for _, raw := range f.Kinds {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			kind, ok := analysis.ParseKind(name)
			if !ok {
				return nil, fmt.Errorf("unknown analysis %q, must be one of: quality, security, performance, docs", name)
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// AddFlagValidation wraps a flag so invalid values fail at parse time.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: flag.Value.Set,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidatePort checks a --port value.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateOneOf returns a validator accepting only the listed values.
func ValidateOneOf(allowed ...string) func(string) error {
	return func(val string) error {
		for _, a := range allowed {
			if strings.EqualFold(val, a) {
				return nil
			}
		}
		return fmt.Errorf("invalid value %q, must be one of: %s", val, strings.Join(allowed, ", "))
	}
}

// ValidateScore checks a 0..100 threshold.
func ValidateScore(val string) error {
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid score: %s", val)
	}
	if n < 0 || n > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", n)
	}
	return nil
}

// ValidateFileExists checks a path argument.
func ValidateFileExists(filename string) error {
	if filename == "" || filename == "-" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}

// writeStructured encodes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
