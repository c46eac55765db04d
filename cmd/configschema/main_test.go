package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSchemaDescribesWorldConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schema", "world.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("writeSchema returned error: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected the temp file to be renamed away, got %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not json: %v", err)
	}
	if doc["title"] != "World configuration" {
		t.Fatalf("unexpected title: %v", doc["title"])
	}
	if !containsKey(doc, "tickSpeed") || !containsKey(doc, "freezeDelay") {
		t.Fatalf("expected world config properties in the schema: %s", data)
	}
}

// containsKey walks the schema looking for a property name.
func containsKey(node any, key string) bool {
	switch v := node.(type) {
	case map[string]any:
		if _, ok := v[key]; ok {
			return true
		}
		for _, child := range v {
			if containsKey(child, key) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if containsKey(child, key) {
				return true
			}
		}
	}
	return false
}
