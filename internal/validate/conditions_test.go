package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestEvaluate_FileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.json")
	writeFile(t, path, `{"urls": []}`)

	r := Evaluate(Assertion{Condition: CondFileExists, Target: path})
	if !r.Passed {
		t.Errorf("existing file should pass: %+v", r)
	}

	r = Evaluate(Assertion{Condition: CondFileExists, Target: filepath.Join(dir, "nope.json")})
	if r.Passed {
		t.Error("missing file should fail")
	}
	if !strings.Contains(r.Evidence, "does not exist") {
		t.Errorf("evidence = %q", r.Evidence)
	}

	// A directory is not a file.
	r = Evaluate(Assertion{Condition: CondFileExists, Target: dir})
	if r.Passed {
		t.Error("directory should fail file_exists")
	}
}

func TestEvaluate_DirExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	writeFile(t, path, "x")

	if r := Evaluate(Assertion{Condition: CondDirExists, Target: dir}); !r.Passed {
		t.Errorf("existing dir should pass: %+v", r)
	}
	if r := Evaluate(Assertion{Condition: CondDirExists, Target: path}); r.Passed {
		t.Error("file should fail dir_exists")
	}
	if r := Evaluate(Assertion{Condition: CondDirExists, Target: filepath.Join(dir, "nope")}); r.Passed {
		t.Error("missing dir should fail")
	}
}

func TestEvaluate_JSONValid(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	writeFile(t, good, `{"a": 1}`)
	if r := Evaluate(Assertion{Condition: CondJSONValid, Target: good}); !r.Passed {
		t.Errorf("valid JSON should pass: %+v", r)
	}

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"a": `)
	if r := Evaluate(Assertion{Condition: CondJSONValid, Target: bad}); r.Passed {
		t.Error("truncated JSON should fail")
	}

	// Missing file fails closed, never errors.
	if r := Evaluate(Assertion{Condition: CondJSONValid, Target: filepath.Join(dir, "nope.json")}); r.Passed {
		t.Error("missing file should fail")
	}
}

func TestEvaluate_JSONValid_JSONL(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.jsonl")
	writeFile(t, good, "{\"a\": 1}\n\n{\"b\": 2}\n")
	if r := Evaluate(Assertion{Condition: CondJSONValid, Target: good}); !r.Passed {
		t.Errorf("valid JSONL should pass: %+v", r)
	}

	bad := filepath.Join(dir, "bad.jsonl")
	writeFile(t, bad, "{\"a\": 1}\nnot json\n")
	r := Evaluate(Assertion{Condition: CondJSONValid, Target: bad})
	if r.Passed {
		t.Error("JSONL with a bad line should fail")
	}
	if !strings.Contains(r.Evidence, "line 2") {
		t.Errorf("evidence should name the line: %q", r.Evidence)
	}
}

func TestEvaluate_CountGTE_DottedField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	writeFile(t, path, `{"result": {"urls": [{"url": "a"}, {"url": "b"}]}}`)

	r := Evaluate(Assertion{Condition: CondCountGTE, Target: path, Field: "result.urls", Min: 2})
	if !r.Passed {
		t.Errorf("count 2 >= 2 should pass: %+v", r)
	}

	r = Evaluate(Assertion{Condition: CondCountGTE, Target: path, Field: "result.urls", Min: 3})
	if r.Passed {
		t.Error("count 2 >= 3 should fail")
	}
	if !strings.Contains(r.Evidence, "has only 2") {
		t.Errorf("evidence = %q", r.Evidence)
	}

	r = Evaluate(Assertion{Condition: CondCountGTE, Target: path, Field: "result.missing", Min: 1})
	if r.Passed {
		t.Error("absent field should fail closed")
	}
}

func TestEvaluate_CountGTE_JSONLLineCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.jsonl")
	writeFile(t, path, "{\"url\": \"a\"}\n{\"url\": \"b\"}\n{\"url\": \"c\"}\n")

	r := Evaluate(Assertion{Condition: CondCountGTE, Target: path, Min: 3})
	if !r.Passed {
		t.Errorf("3 lines >= 3 should pass: %+v", r)
	}
	r = Evaluate(Assertion{Condition: CondCountGTE, Target: path, Min: 4})
	if r.Passed {
		t.Error("3 lines >= 4 should fail")
	}
}

func TestEvaluate_FieldNonempty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.json")
	writeFile(t, path, `{"name": "bringatrailer", "url": "  ", "meta": {"region": "us"}}`)

	cases := []struct {
		field string
		pass  bool
	}{
		{"name", true},
		{"url", false},         // whitespace-only counts as empty
		{"meta.region", true},  // dotted path
		{"meta.missing", false},
	}
	for _, c := range cases {
		r := Evaluate(Assertion{Condition: CondFieldNonempty, Target: path, Field: c.field})
		if r.Passed != c.pass {
			t.Errorf("field %q: passed = %v, want %v (%s)", c.field, r.Passed, c.pass, r.Evidence)
		}
	}
}

func TestEvaluate_UnknownConditionFailsClosed(t *testing.T) {
	r := Evaluate(Assertion{Condition: "regex_matches", Target: "x"})
	if r.Passed {
		t.Error("unknown condition must fail closed")
	}
	if !strings.Contains(r.Evidence, "regex_matches") {
		t.Errorf("evidence should name the condition: %q", r.Evidence)
	}
}

func TestEvaluateBatch_IndependentResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	writeFile(t, path, `{}`)

	results := EvaluateBatch([]Assertion{
		{Condition: "bogus", Target: "x"},
		{Condition: CondFileExists, Target: path},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Passed || !results[1].Passed {
		t.Errorf("results = %+v", results)
	}
}
