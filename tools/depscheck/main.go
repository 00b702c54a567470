// Command depscheck enforces the package layering: simulation packages
// never import the transport or the process wiring above them.
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

const module = "terrafort/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

type rule struct {
	// scope matches importing packages by prefix.
	scope     string
	exempt    []string
	forbidden []string
}

var rules = []rule{
	{
		scope:     module + "/internal/",
		exempt:    []string{module + "/internal/net", module + "/internal/app"},
		forbidden: []string{module, module + "/internal/net/ws", module + "/internal/app"},
	},
	{
		scope:     module + "/internal/net/proto",
		forbidden: []string{module + "/internal/session", module + "/internal/world", module + "/internal/entity"},
	},
	{
		scope:     module + "/logging",
		forbidden: []string{module, module + "/internal/"},
	},
}

func (r rule) applies(pkg string) bool {
	if !strings.HasPrefix(pkg, r.scope) {
		return false
	}
	for _, ex := range r.exempt {
		if pkg == ex || strings.HasPrefix(pkg, ex+"/") {
			return false
		}
	}
	return true
}

func (r rule) violates(imp string) bool {
	for _, f := range r.forbidden {
		if strings.HasSuffix(f, "/") {
			if strings.HasPrefix(imp, f) {
				return true
			}
			continue
		}
		if imp == f {
			return true
		}
	}
	return false
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...", "./logging/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		for _, r := range rules {
			if !r.applies(pkg.ImportPath) {
				continue
			}
			for _, imp := range pkg.Imports {
				if r.violates(imp) {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
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
