package main

import (
	"strings"
	"testing"
)

func TestDecodePackagesReadsConcatenatedJSON(t *testing.T) {
	input := `{"ImportPath":"a","Imports":["x"]}
{"ImportPath":"b","Imports":["y","z"]}`
	pkgs, err := decodePackages(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decodePackages returned error: %v", err)
	}
	if len(pkgs) != 2 || pkgs[1].ImportPath != "b" || len(pkgs[1].Imports) != 2 {
		t.Fatalf("unexpected packages: %+v", pkgs)
	}
}

func TestCheckRuleMatchesWholePathSegments(t *testing.T) {
	r := rule{Forbidden: []string{modulePath + "/internal/net"}}
	pkgs := []packageInfo{
		{ImportPath: modulePath + "/internal/world", Imports: []string{
			modulePath + "/internal/net/ws",
			modulePath + "/internal/network",
			modulePath + "/internal/net",
		}},
	}
	violations := checkRule(r, pkgs)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", violations)
	}
}
