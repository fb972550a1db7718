package skeleton

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

//go:embed schema.json
var schemaText string

const schemaURL = "modelc://skeleton.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaText)); err != nil {
			schemaErr = fmt.Errorf("add skeleton schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile skeleton schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks raw YAML or JSON document bytes against the skeleton
// schema.
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse skeleton: %w", err)
	}
	// Round trip through JSON so the validator sees plain JSON values.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal skeleton for schema validation: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to normalize skeleton for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("skeleton schema validation failed: %w", err)
	}
	return nil
}

// Decode validates and parses a document. When the document carries no
// text, the raw bytes stand in for it so content hashes track edits.
func Decode(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode skeleton: %w", err)
	}
	if doc.Text == "" {
		doc.Text = string(data)
	}
	return &doc, nil
}

// Load reads a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ContentHash is the blake3 digest of the source text.
func ContentHash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
