package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "toutuo/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under Scope from importing anything under one of
// the Forbidden prefixes.
type rule struct {
	Scope     string
	Forbidden []string
}

// The tick core must stay free of transport and process wiring so it can be
// stepped from tests without a server.
var rules = []rule{
	{
		Scope: "./internal/world/...",
		Forbidden: []string{
			modulePath + "/internal/sim",
			modulePath + "/internal/net",
			modulePath + "/internal/app",
		},
	},
	{
		Scope: "./internal/sim/...",
		Forbidden: []string{
			modulePath + "/internal/net",
			modulePath + "/internal/app",
		},
	},
	{
		Scope: "./internal/net/...",
		Forbidden: []string{
			modulePath + "/internal/app",
		},
	},
}

func main() {
	var violations []string
	for _, r := range rules {
		pkgs, err := listPackages(r.Scope)
		if err != nil {
			fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, checkRule(r, pkgs)...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func listPackages(pattern string) ([]packageInfo, error) {
	cmd := exec.Command("go", "list", "-json", pattern)
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Stderr.Write(exitErr.Stderr)
		}
		return nil, fmt.Errorf("failed to list packages %s: %w", pattern, err)
	}
	return decodePackages(bytes.NewReader(output))
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		pkgs = append(pkgs, pkg)
	}
}

func checkRule(r rule, pkgs []packageInfo) []string {
	var violations []string
	for _, pkg := range pkgs {
		for _, imp := range pkg.Imports {
			for _, prefix := range r.Forbidden {
				if imp == prefix || strings.HasPrefix(imp, prefix+"/") {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return violations
}
