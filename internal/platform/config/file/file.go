// Package file loads an optional YAML overlay and flattens it into a config.Map.
//
// Nested keys are joined with "_" and upper-cased, lists become CSV:
//
//	core:
//	  verifier:
//	    skip_domains: [".gov", "@fsb"]
//
// yields CORE_VERIFIER_SKIP_DOMAINS=".gov,@fsb", so the overlay is read through the
// same Prefix/May* calls as the environment
package file

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"mailsweep/internal/platform/config"
	perr "mailsweep/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// readFile is a seam for tests
var readFile = os.ReadFile

// Load reads path and returns its flattened view. An empty path yields an empty Map
func Load(path string) (config.Map, error) {
	out := config.Map{}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	raw, err := readFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "config: cannot read %s", path)
	}
	return Parse(raw)
}

// Parse flattens a YAML document
func Parse(raw []byte) (config.Map, error) {
	out := config.Map{}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "config: cannot parse yaml")
	}
	flatten("", doc, out)
	return out, nil
}

// Keys returns the flattened keys sorted, for diagnostics
func Keys(m config.Map) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func flatten(prefix string, v any, out config.Map) {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			flatten(join(prefix, k), child, out)
		}
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, scalar(item))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
		// explicit null leaves the key unset
	default:
		out[prefix] = scalar(x)
	}
}

func join(prefix, k string) string {
	k = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(k), "-", "_"))
	if prefix == "" {
		return k
	}
	return prefix + "_" + k
}

func scalar(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
