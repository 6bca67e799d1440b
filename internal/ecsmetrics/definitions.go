package ecsmetrics

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
)

//go:embed schema.json
var definitionsSchema string

// Definitions is the YAML document selecting which metrics to export.
//
//	metrics:
//	  - name: CPUUtilization
//	    stat: Maximum
//	    unit: Percent
//	  - name: RunningTaskCount
type Definitions struct {
	Metrics []Definition `yaml:"metrics" json:"metrics"`
}

// Definition is one entry of a definitions file. Stat defaults to Average;
// an empty unit lets CloudWatch return the metric's native unit.
type Definition struct {
	Name string `yaml:"name" json:"name"`
	Stat string `yaml:"stat,omitempty" json:"stat,omitempty"`
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// LoadDefinitions reads a definitions file. An empty path returns
// DefaultMetrics.
func LoadDefinitions(path string) ([]MetricSpec, error) {
	if path == "" {
		return DefaultMetrics, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      config.EnvMetricsDefinitions,
			Value:      path,
			Message:    fmt.Sprintf("cannot read definitions file: %v", err),
			Suggestion: "Point METRICS_DEFINITIONS at a readable YAML file or unset it to use the default metrics",
		}
	}

	specs, err := ParseDefinitions(data)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:   config.EnvMetricsDefinitions,
			Value:   path,
			Message: err.Error(),
		}
	}
	return specs, nil
}

// ParseDefinitions validates a YAML definitions document against the
// embedded schema and converts it to metric specs.
func ParseDefinitions(data []byte) ([]MetricSpec, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	specs := make([]MetricSpec, 0, len(defs.Metrics))
	seen := make(map[string]bool, len(defs.Metrics))
	for _, d := range defs.Metrics {
		if seen[d.Name] {
			return nil, fmt.Errorf("metric %s is listed more than once", d.Name)
		}
		seen[d.Name] = true

		spec := MetricSpec{Name: d.Name, Stat: cwtypes.StatisticAverage}
		if d.Stat != "" {
			spec.Stat = cwtypes.Statistic(d.Stat)
		}
		if d.Unit != "" {
			unit, ok := parseUnit(d.Unit)
			if !ok {
				return nil, fmt.Errorf("metric %s: unknown unit %q", d.Name, d.Unit)
			}
			spec.Unit = unit
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal definitions for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionsSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}

func parseUnit(s string) (cwtypes.StandardUnit, bool) {
	for _, u := range cwtypes.StandardUnit("").Values() {
		if string(u) == s {
			return u, true
		}
	}
	return "", false
}
