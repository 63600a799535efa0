// Package contracts validates queue payloads against the JSON Schemas in the
// schemas package.
package contracts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message headers stamped by producers.
const (
	HeaderEventType    = "event-type"
	HeaderEventVersion = "event-version"
)

// Event types known to the service. The keys are derived from the schema
// file paths, see keyFromPath.
const (
	ListCrawlEvent   = "ListCrawlEvent"
	DetailCrawlEvent = "DetailCrawlEvent"
	VersionV1        = "1.0.0"
)

// schemas are registered under a fixed base so $ref between them resolves
// without touching the network or the file system.
const resourceBase = "https://crawlflare.local/schemas/"

// Validator holds every compiled schema keyed by "<EventType>/<version>".
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator compiles all events/<name>/v<major>.json files of fsys.
func NewValidator(fsys fs.FS) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	var paths []string
	err := fs.WalkDir(fsys, "events", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := compiler.AddResource(resourceBase+path, f); err != nil {
			return fmt.Errorf("add schema resource %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk schemas: %w", err)
	}

	v := &Validator{compiled: make(map[string]*jsonschema.Schema, len(paths))}
	for _, path := range paths {
		key := keyFromPath(path)
		if key == "" {
			return nil, fmt.Errorf("schema path %s does not follow events/<name>/v<major>.json", path)
		}
		schema, err := compiler.Compile(resourceBase + path)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", path, err)
		}
		v.compiled[key] = schema
	}
	return v, nil
}

// Keys lists the registered schema keys in order.
func (v *Validator) Keys() []string {
	keys := make([]string, 0, len(v.compiled))
	for k := range v.compiled {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks body against the schema of eventType/eventVersion.
func (v *Validator) Validate(eventType, eventVersion string, body []byte) error {
	key := eventType + "/" + eventVersion
	schema, ok := v.compiled[key]
	if !ok {
		return fmt.Errorf("schema for event %q version %q not found", eventType, eventVersion)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("message body is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}
	return nil
}

// keyFromPath turns "events/list-crawl/v1.json" into "ListCrawlEvent/1.0.0".
func keyFromPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "events/"), ".json")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[1], "v") || parts[0] == "" {
		return ""
	}

	caser := cases.Title(language.English)
	var name strings.Builder
	for _, p := range strings.Split(parts[0], "-") {
		name.WriteString(caser.String(p))
	}
	name.WriteString("Event")

	return fmt.Sprintf("%s/%s.0.0", name.String(), strings.TrimPrefix(parts[1], "v"))
}
