package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"codescope/internal/errs"
)

//go:embed rules
var rulesFS embed.FS

// Load parses the embedded rule bundle. Every document must validate against
// the bundled JSON schema; unknown keys, schema failures, and duplicate rule
// ids reject the whole bundle. Files under templates/ are excluded.
func Load() (*RuleSet, error) {
	return LoadFS(rulesFS, "rules")
}

// LoadFS loads a rule bundle from an arbitrary filesystem, rooted at dir.
// The root must contain schema.json.
func LoadFS(fsys fs.FS, dir string) (*RuleSet, error) {
	schemaBytes, err := fs.ReadFile(fsys, dir+"/schema.json")
	if err != nil {
		return nil, fmt.Errorf("read rule schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("register rule schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile rule schema: %w", err)
	}

	rs := &RuleSet{byID: make(map[string]*Rule)}
	err = fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(path) {
			return nil
		}
		if strings.Contains(path, "/templates/") {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rule, err := parseRule(schema, path, raw)
		if err != nil {
			return err
		}
		if _, exists := rs.byID[rule.ID]; exists {
			return errs.Invalid("id", fmt.Sprintf("%s: duplicate rule id %s", path, rule.ID))
		}
		rs.rules = append(rs.rules, rule)
		rs.byID[rule.ID] = &rs.rules[len(rs.rules)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The append loop may have relocated the backing array.
	for i := range rs.rules {
		rs.byID[rs.rules[i].ID] = &rs.rules[i]
	}
	return rs, nil
}

// parseRule validates one YAML document against the schema, then decodes it
// strictly into a Rule and compiles it.
func parseRule(schema *jsonschema.Schema, path string, raw []byte) (Rule, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Rule{}, fmt.Errorf("parse %s: %w", path, err)
	}
	// The schema validator expects json.Unmarshal value types, so round-trip
	// the YAML document through JSON.
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return Rule{}, fmt.Errorf("normalize %s: %w", path, err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonBytes, &jsonDoc); err != nil {
		return Rule{}, fmt.Errorf("normalize %s: %w", path, err)
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return Rule{}, errs.Invalid("rule", fmt.Sprintf("%s: %v", path, err))
	}

	var rule Rule
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&rule); err != nil {
		return Rule{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := rule.compile(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func isRuleFile(path string) bool {
	return strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")
}
