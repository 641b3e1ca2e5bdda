package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"waypoint-walk/server/internal/config"
	"waypoint-walk/server/internal/scene"
)

func main() {
	var outPath, kind string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.StringVar(&kind, "kind", "scene", "document to describe: scene or config")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema, err := buildSchema(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema(kind string) (*jsonschema.Schema, error) {
	switch kind {
	case "scene":
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
		}
		schema := reflector.Reflect(new(scene.File))
		schema.Title = "Waypoint Walk Scene"
		schema.Description = "Validates authored scene files in scenes/ (JSON or YAML)"
		return schema, nil
	case "config":
		// Server config is YAML only and every key has a default.
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  false,
			PreferYAMLSchema:           true,
			RequiredFromJSONSchemaTags: true,
		}
		schema := reflector.Reflect(new(config.Config))
		schema.Title = "Waypoint Walk Server Config"
		schema.Description = "Validates the file passed with -config or WALK_CONFIG"
		return schema, nil
	default:
		return nil, fmt.Errorf("unknown schema kind %q", kind)
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
