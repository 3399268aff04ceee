// Package validate evaluates declarative conditions against pipeline
// artifacts on disk. Every evaluator fails closed: a missing file or a
// parse error is a failed condition with evidence, never a process error.
// Validation failure is a first-class outcome, not an error.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Condition names accepted by Evaluate and assert_batch.
const (
	CondFileExists    = "file_exists"
	CondDirExists     = "dir_exists"
	CondJSONValid     = "json_valid"
	CondCountGTE      = "count_gte"
	CondFieldNonempty = "field_nonempty"
)

// Assertion is one caller-supplied condition to evaluate.
type Assertion struct {
	Condition string `json:"condition"`
	Target    string `json:"target"`          // file or directory path
	Field     string `json:"field,omitempty"` // dotted path into a JSON document
	Min       int    `json:"min,omitempty"`   // threshold for count_gte
}

// Result is the verdict for one condition, with human-readable evidence.
type Result struct {
	Condition string `json:"condition"`
	Target    string `json:"target"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	Passed    bool   `json:"passed"`
	Evidence  string `json:"evidence"`
}

// Evaluate runs a single assertion. Unknown condition names fail closed
// with evidence naming the condition; they never return an error.
func Evaluate(a Assertion) Result {
	switch a.Condition {
	case CondFileExists:
		return fileExists(a.Target)
	case CondDirExists:
		return dirExists(a.Target)
	case CondJSONValid:
		return jsonValid(a.Target)
	case CondCountGTE:
		return countGTE(a.Target, a.Field, a.Min)
	case CondFieldNonempty:
		return fieldNonempty(a.Target, a.Field)
	default:
		return Result{
			Condition: a.Condition,
			Target:    a.Target,
			Expected:  "a known condition",
			Actual:    fmt.Sprintf("unknown condition %q", a.Condition),
			Passed:    false,
			Evidence:  fmt.Sprintf("condition %q is not recognized", a.Condition),
		}
	}
}

// EvaluateBatch runs each assertion independently; one failing or even
// unrecognized assertion never stops the rest.
func EvaluateBatch(assertions []Assertion) []Result {
	results := make([]Result, 0, len(assertions))
	for _, a := range assertions {
		results = append(results, Evaluate(a))
	}
	return results
}

func fileExists(path string) Result {
	r := Result{Condition: CondFileExists, Target: path, Expected: "file exists"}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		r.Actual = "missing"
		r.Evidence = fmt.Sprintf("%s does not exist", path)
	case info.IsDir():
		r.Actual = "directory"
		r.Evidence = fmt.Sprintf("%s is a directory, not a file", path)
	default:
		r.Actual = "exists"
		r.Passed = true
		r.Evidence = fmt.Sprintf("%s exists (%d bytes)", path, info.Size())
	}
	return r
}

func dirExists(path string) Result {
	r := Result{Condition: CondDirExists, Target: path, Expected: "directory exists"}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		r.Actual = "missing"
		r.Evidence = fmt.Sprintf("%s does not exist", path)
	case !info.IsDir():
		r.Actual = "file"
		r.Evidence = fmt.Sprintf("%s is a file, not a directory", path)
	default:
		r.Actual = "exists"
		r.Passed = true
		r.Evidence = fmt.Sprintf("%s exists", path)
	}
	return r
}

func jsonValid(path string) Result {
	r := Result{Condition: CondJSONValid, Target: path, Expected: "valid JSON"}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Actual = "missing"
		r.Evidence = fmt.Sprintf("%s could not be read: %v", path, err)
		return r
	}

	if strings.HasSuffix(path, ".jsonl") {
		for i, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !json.Valid([]byte(line)) {
				r.Actual = "invalid"
				r.Evidence = fmt.Sprintf("%s line %d is not valid JSON", path, i+1)
				return r
			}
		}
		r.Actual = "valid"
		r.Passed = true
		r.Evidence = fmt.Sprintf("%s parses as JSONL", path)
		return r
	}

	if !json.Valid(data) {
		r.Actual = "invalid"
		r.Evidence = fmt.Sprintf("%s is not valid JSON", path)
		return r
	}
	r.Actual = "valid"
	r.Passed = true
	r.Evidence = fmt.Sprintf("%s parses as JSON", path)
	return r
}

// countGTE checks that the array at a dotted field path inside a JSON
// document (or the line count of a JSONL file when field is empty) has at
// least min elements.
func countGTE(path, field string, min int) Result {
	r := Result{
		Condition: CondCountGTE,
		Target:    path,
		Expected:  fmt.Sprintf("count >= %d", min),
	}

	n, evidence, ok := countAt(path, field)
	if !ok {
		r.Actual = "unreadable"
		r.Evidence = evidence
		return r
	}

	r.Actual = fmt.Sprintf("count = %d", n)
	if n >= min {
		r.Passed = true
		r.Evidence = fmt.Sprintf("%s has %d items (need %d)", describeTarget(path, field), n, min)
	} else {
		r.Evidence = fmt.Sprintf("%s has only %d items, need at least %d", describeTarget(path, field), n, min)
	}
	return r
}

func fieldNonempty(path, field string) Result {
	r := Result{
		Condition: CondFieldNonempty,
		Target:    path,
		Expected:  fmt.Sprintf("field %q nonempty", field),
	}

	doc, evidence, ok := decodeDocument(path)
	if !ok {
		r.Actual = "unreadable"
		r.Evidence = evidence
		return r
	}

	val, found := lookupField(doc, field)
	if !found {
		r.Actual = "absent"
		r.Evidence = fmt.Sprintf("field %q not present in %s", field, path)
		return r
	}

	if isEmptyValue(val) {
		r.Actual = "empty"
		r.Evidence = fmt.Sprintf("field %q in %s is empty", field, path)
		return r
	}

	r.Actual = "nonempty"
	r.Passed = true
	r.Evidence = fmt.Sprintf("field %q in %s is set", field, path)
	return r
}

// ─── Document helpers ────────────────────────────────────────────────────────

func decodeDocument(path string) (any, string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("%s could not be read: %v", path, err), false
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Sprintf("%s failed to parse: %v", path, err), false
	}
	return doc, "", true
}

// countAt returns the element count at the field path. For JSONL files with
// an empty field, it counts nonblank lines.
func countAt(path, field string) (int, string, bool) {
	if strings.HasSuffix(path, ".jsonl") && field == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Sprintf("%s could not be read: %v", path, err), false
		}
		n := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
		return n, "", true
	}

	doc, evidence, ok := decodeDocument(path)
	if !ok {
		return 0, evidence, false
	}

	val := doc
	if field != "" {
		var found bool
		val, found = lookupField(doc, field)
		if !found {
			return 0, fmt.Sprintf("field %q not present in %s", field, path), false
		}
	}

	switch v := val.(type) {
	case []any:
		return len(v), "", true
	case map[string]any:
		return len(v), "", true
	default:
		return 0, fmt.Sprintf("field %q in %s is not countable", field, path), false
	}
}

// lookupField walks a dotted path through nested JSON objects.
func lookupField(doc any, field string) (any, bool) {
	current := doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func describeTarget(path, field string) string {
	if field == "" {
		return path
	}
	return fmt.Sprintf("%s %q", path, field)
}

// countFilesWithExt counts regular files under dir with the given extension.
func countFilesWithExt(dir, ext string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ext {
			n++
		}
	}
	return n
}
