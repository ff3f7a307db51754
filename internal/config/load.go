package config

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

//go:embed schema/host-configuration.schema.json
var schemaFS embed.FS

const schemaResource = "schema/host-configuration.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := schemaFS.ReadFile(schemaResource)
		if err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("host-configuration.json", bytes.NewReader(raw)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile("host-configuration.json")
	})
	return compiled, compileErr
}

// LoadHostConfiguration parses raw YAML or JSON bytes into a
// HostConfiguration, validating against the embedded JSON Schema first
// (an InvalidInput error, per spec §7) and then running the dynamic
// semantic checks in Validate.
func LoadHostConfiguration(raw []byte) (*HostConfiguration, error) {
	jsonBytes, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "config.Load", "not valid YAML/JSON", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "config.Load", "failed to compile schema", err)
	}

	var anyDoc any
	if err := yaml.Unmarshal(jsonBytes, &anyDoc); err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "config.Load", "failed to decode document", err)
	}
	if err := schema.Validate(anyDoc); err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "config.Load", "schema validation failed", err)
	}

	var cfg HostConfiguration
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cfg); err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "config.Load", "failed to decode into HostConfiguration", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UnmarshalYAML implements custom decoding for PartitionSize, which accepts
// either the literal string "Grow" or a byte-count string/number.
func (s *PartitionSize) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		if raw == "Grow" || raw == "grow" {
			s.Grow = true
			return nil
		}
		n, err := parseByteSize(raw)
		if err != nil {
			return err
		}
		s.Bytes = n
		return nil
	}

	var n uint64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid partition size: %w", err)
	}
	s.Bytes = n
	return nil
}

// MarshalYAML implements custom encoding for PartitionSize, the inverse of
// UnmarshalYAML.
func (s PartitionSize) MarshalYAML() (any, error) {
	if s.Grow {
		return "Grow", nil
	}
	return s.Bytes, nil
}

func parseByteSize(raw string) (uint64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty size")
	}
	unit := uint64(1)
	last := raw[len(raw)-1]
	numPart := raw
	switch last {
	case 'K', 'k':
		unit = 1024
		numPart = raw[:len(raw)-1]
	case 'M', 'm':
		unit = 1024 * 1024
		numPart = raw[:len(raw)-1]
	case 'G', 'g':
		unit = 1024 * 1024 * 1024
		numPart = raw[:len(raw)-1]
	case 'T', 't':
		unit = 1024 * 1024 * 1024 * 1024
		numPart = raw[:len(raw)-1]
	}
	var n uint64
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	return n * unit, nil
}
