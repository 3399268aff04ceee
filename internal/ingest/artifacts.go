// Package ingest translates scraping-pipeline artifacts into graph
// mutations. It reads the JSON/JSONL files the external pipeline writes
// (urls, builds, sources) and upserts entities and relations, so reimports
// are idempotent. Per-record problems are collected, never fatal to a batch.
package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformedArtifact — an input file exists but does not parse as the
// expected shape. Surfaced per-record or per-file, never as a crash.
var ErrMalformedArtifact = errors.New("malformed artifact")

// maxJSONLLine bounds a single JSONL line (scraped URLs and build records
// are small; 1 MiB is generous).
const maxJSONLLine = 1 << 20

// URLRecord is one discovered URL from urls.json / urls.jsonl.
type URLRecord struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// BuildRecord is one extracted vehicle build from builds.json / builds.jsonl.
type BuildRecord struct {
	ID            string   `json:"id,omitempty"` // external id; title used when absent
	Title         string   `json:"title"`
	URL           string   `json:"url,omitempty"`
	Year          string   `json:"year,omitempty"`
	Make          string   `json:"make,omitempty"`
	Model         string   `json:"model,omitempty"`
	Category      string   `json:"category,omitempty"`
	Modifications []string `json:"modifications,omitempty"`
}

// PipelineCounters are the per-source progress counters from sources.json.
type PipelineCounters struct {
	ExpectedURLs int `json:"expectedUrls"`
	URLsFound    int `json:"urlsFound"`
	HTMLScraped  int `json:"htmlScraped"`
	Builds       int `json:"builds"`
	Mods         int `json:"mods"`
}

// SourceRecord is one entry from the pipeline's sources.json.
type SourceRecord struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	URL      string           `json:"url,omitempty"`
	Pipeline PipelineCounters `json:"pipeline"`
}

// ReadURLs loads urls.json (wrapper object with a "urls" array) or
// urls.jsonl (one object per line) from dir, preferring the .json form.
func ReadURLs(dir string) ([]URLRecord, error) {
	jsonPath := filepath.Join(dir, "urls.json")
	if fileExists(jsonPath) {
		var wrapper struct {
			URLs []URLRecord `json:"urls"`
		}
		if err := decodeJSONFile(jsonPath, &wrapper); err != nil {
			return nil, err
		}
		return wrapper.URLs, nil
	}

	jsonlPath := filepath.Join(dir, "urls.jsonl")
	if fileExists(jsonlPath) {
		var records []URLRecord
		err := eachJSONLine(jsonlPath, func(line []byte) error {
			var r URLRecord
			if err := json.Unmarshal(line, &r); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, jsonlPath, err)
			}
			records = append(records, r)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return records, nil
	}

	return nil, fmt.Errorf("%w: no urls.json or urls.jsonl in %s", fs.ErrNotExist, dir)
}

// ReadBuilds loads builds.json (wrapper object with a "builds" array) or
// builds.jsonl from dir. JSONL decode errors are collected per line so one
// bad record does not sink the batch.
func ReadBuilds(dir string) ([]BuildRecord, []error, error) {
	jsonPath := filepath.Join(dir, "builds.json")
	if fileExists(jsonPath) {
		var wrapper struct {
			Builds []BuildRecord `json:"builds"`
		}
		if err := decodeJSONFile(jsonPath, &wrapper); err != nil {
			return nil, nil, err
		}
		return wrapper.Builds, nil, nil
	}

	jsonlPath := filepath.Join(dir, "builds.jsonl")
	if fileExists(jsonlPath) {
		var records []BuildRecord
		var recordErrs []error
		lineNo := 0
		err := eachJSONLine(jsonlPath, func(line []byte) error {
			lineNo++
			var r BuildRecord
			if err := json.Unmarshal(line, &r); err != nil {
				recordErrs = append(recordErrs,
					fmt.Errorf("%w: %s line %d: %v", ErrMalformedArtifact, jsonlPath, lineNo, err))
				return nil
			}
			records = append(records, r)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		return records, recordErrs, nil
	}

	return nil, nil, fmt.Errorf("%w: no builds.json or builds.jsonl in %s", fs.ErrNotExist, dir)
}

// ReadSources loads sources.json from the pipeline root. Both a bare array
// and a {"sources": [...]} wrapper are accepted.
func ReadSources(root string) ([]SourceRecord, error) {
	path := filepath.Join(root, "sources.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []SourceRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
		}
		return records, nil
	}

	var wrapper struct {
		Sources []SourceRecord `json:"sources"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	return wrapper.Sources, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func decodeJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	return nil
}

func eachJSONLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxJSONLLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
