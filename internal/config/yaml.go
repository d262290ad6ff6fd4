package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	yaml "go.yaml.in/yaml/v3"
)

// yamlToJSON turns a .yaml/.yml document into JSON for the strict decoder.
// Other extensions pass through untouched. The second return value names
// the source format for error messages.
func yamlToJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", errors.Wrap(err, "yaml unmarshal")
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc = stringKeys(doc)
	expandRunBlocks(doc)

	j, err := json.Marshal(doc)
	if err != nil {
		return nil, "yaml", errors.Wrap(err, "yaml->json marshal")
	}
	return j, "yaml", nil
}

func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}

// expandRunBlocks lets a schedule give its run entries as one block scalar:
//
//	run: |
//	  Level=Full 1st sun at 23:05
//	  Level=Incremental mon-sat at 23:05
//
// Each non-blank line becomes one entry.
func expandRunBlocks(doc any) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	list, ok := root["schedules"].([]any)
	if !ok {
		return
	}
	for _, item := range list {
		s, ok := item.(map[string]any)
		if !ok {
			continue
		}
		block, ok := s["run"].(string)
		if !ok {
			continue
		}
		runs := []any{}
		for _, line := range strings.Split(block, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				runs = append(runs, line)
			}
		}
		s["run"] = runs
	}
}
