package validate

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/ingest"
	"github.com/google/uuid"
)

// StageAll runs every stage battery in pipeline order.
const StageAll = "all"

// StageReport is the outcome of one validation run: the ordered condition
// results plus a derived overall verdict (pass iff every condition passed).
type StageReport struct {
	CheckID   string   `json:"check_id"`
	Stage     string   `json:"stage"`
	SourceDir string   `json:"source_dir"`
	Results   []Result `json:"results"`
	Passed    bool     `json:"passed"`
	CheckedAt string   `json:"checked_at"`
}

// Validator runs the fixed per-stage condition batteries. Minimum artifact
// counts come from the scoring config table.
type Validator struct {
	scoring config.Scoring
}

// New creates a Validator with the given scoring table.
func New(scoring config.Scoring) *Validator {
	return &Validator{scoring: scoring}
}

// KnownStage reports whether stage names a pipeline stage or "all".
func KnownStage(stage string) bool {
	if stage == StageAll {
		return true
	}
	for _, s := range config.StageOrder {
		if stage == s {
			return true
		}
	}
	return false
}

// ValidateStage runs the fixed battery for one stage (or every stage for
// "all") against a source's artifact directory.
func (v *Validator) ValidateStage(sourceDir, stage string) (*StageReport, error) {
	if !KnownStage(stage) {
		return nil, fmt.Errorf("unknown stage %q (known: %s, all)",
			stage, strings.Join(config.StageOrder, ", "))
	}

	report := &StageReport{
		CheckID:   uuid.NewString(),
		Stage:     stage,
		SourceDir: sourceDir,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	stages := []string{stage}
	if stage == StageAll {
		stages = config.StageOrder
	}
	for _, s := range stages {
		report.Results = append(report.Results, v.battery(sourceDir, s)...)
	}

	report.Passed = true
	for _, r := range report.Results {
		if !r.Passed {
			report.Passed = false
			break
		}
	}
	return report, nil
}

// battery returns the ordered condition results for one stage.
func (v *Validator) battery(sourceDir, stage string) []Result {
	switch stage {
	case config.StageURLDiscovery:
		return v.urlDiscovery(sourceDir)
	case config.StageHTMLScrape:
		return v.htmlScrape(sourceDir)
	case config.StageBuildExtraction:
		return v.buildExtraction(sourceDir)
	case config.StageModExtraction:
		return v.modExtraction(sourceDir)
	default:
		return nil
	}
}

// urlsPath picks urls.json over urls.jsonl; the .json path is returned even
// when neither exists so the failure evidence names a concrete file.
func urlsPath(sourceDir string) (string, string) {
	jsonPath := filepath.Join(sourceDir, "urls.json")
	jsonlPath := filepath.Join(sourceDir, "urls.jsonl")
	if fileExists(jsonPath).Passed {
		return jsonPath, "urls"
	}
	if fileExists(jsonlPath).Passed {
		return jsonlPath, ""
	}
	return jsonPath, "urls"
}

func buildsPath(sourceDir string) (string, string) {
	jsonPath := filepath.Join(sourceDir, "builds.json")
	jsonlPath := filepath.Join(sourceDir, "builds.jsonl")
	if fileExists(jsonPath).Passed {
		return jsonPath, "builds"
	}
	if fileExists(jsonlPath).Passed {
		return jsonlPath, ""
	}
	return jsonPath, "builds"
}

func (v *Validator) urlDiscovery(sourceDir string) []Result {
	path, field := urlsPath(sourceDir)
	return []Result{
		fileExists(path),
		jsonValid(path),
		countGTE(path, field, v.scoring.MinURLs),
	}
}

func (v *Validator) htmlScrape(sourceDir string) []Result {
	htmlDir := filepath.Join(sourceDir, "html")
	results := []Result{dirExists(htmlDir)}

	n := countFilesWithExt(htmlDir, ".html")
	r := Result{
		Condition: CondCountGTE,
		Target:    htmlDir,
		Expected:  fmt.Sprintf("count >= %d", v.scoring.MinHTML),
		Actual:    fmt.Sprintf("count = %d", n),
	}
	if n >= v.scoring.MinHTML {
		r.Passed = true
		r.Evidence = fmt.Sprintf("%s contains %d .html files (need %d)", htmlDir, n, v.scoring.MinHTML)
	} else {
		r.Evidence = fmt.Sprintf("%s contains only %d .html files, need at least %d", htmlDir, n, v.scoring.MinHTML)
	}
	results = append(results, r)

	// When URL discovery output is present, every found URL should have a
	// scraped page.
	if urls, err := ingest.ReadURLs(sourceDir); err == nil {
		cover := Result{
			Condition: CondCountGTE,
			Target:    htmlDir,
			Expected:  fmt.Sprintf("count >= %d (urls found)", len(urls)),
			Actual:    fmt.Sprintf("count = %d", n),
		}
		if n >= len(urls) {
			cover.Passed = true
			cover.Evidence = fmt.Sprintf("%d pages scraped for %d discovered urls", n, len(urls))
		} else {
			cover.Evidence = fmt.Sprintf("only %d pages scraped for %d discovered urls", n, len(urls))
		}
		results = append(results, cover)
	}

	return results
}

func (v *Validator) buildExtraction(sourceDir string) []Result {
	path, field := buildsPath(sourceDir)
	results := []Result{
		fileExists(path),
		jsonValid(path),
		countGTE(path, field, v.scoring.MinBuilds),
	}
	results = append(results, buildsWellFormed(sourceDir, path))
	return results
}

// buildsWellFormed checks every build record carries a title. Unreadable
// artifacts fail closed with the reader's evidence.
func buildsWellFormed(sourceDir, path string) Result {
	r := Result{
		Condition: CondFieldNonempty,
		Target:    path,
		Expected:  "every build has a title",
	}

	builds, recordErrs, err := ingest.ReadBuilds(sourceDir)
	if err != nil {
		r.Actual = "unreadable"
		r.Evidence = fmt.Sprintf("builds could not be read: %v", err)
		return r
	}
	if len(recordErrs) > 0 {
		r.Actual = fmt.Sprintf("%d malformed records", len(recordErrs))
		r.Evidence = fmt.Sprintf("first malformed record: %v", recordErrs[0])
		return r
	}

	missing := 0
	for _, b := range builds {
		if strings.TrimSpace(b.Title) == "" {
			missing++
		}
	}
	if missing > 0 {
		r.Actual = fmt.Sprintf("%d builds missing title", missing)
		r.Evidence = fmt.Sprintf("%d of %d builds have no title", missing, len(builds))
		return r
	}

	r.Actual = "all titled"
	r.Passed = true
	r.Evidence = fmt.Sprintf("all %d builds carry a title", len(builds))
	return r
}

func (v *Validator) modExtraction(sourceDir string) []Result {
	path, _ := buildsPath(sourceDir)

	r := Result{
		Condition: CondCountGTE,
		Target:    path,
		Expected:  fmt.Sprintf("total modifications >= %d", v.scoring.MinMods),
	}

	builds, _, err := ingest.ReadBuilds(sourceDir)
	if err != nil {
		r.Actual = "unreadable"
		r.Evidence = fmt.Sprintf("builds could not be read: %v", err)
		return []Result{r}
	}

	total := 0
	withMods := 0
	for _, b := range builds {
		count := 0
		for _, m := range b.Modifications {
			if strings.TrimSpace(m) != "" {
				count++
			}
		}
		total += count
		if count > 0 {
			withMods++
		}
	}

	r.Actual = fmt.Sprintf("count = %d", total)
	if total >= v.scoring.MinMods {
		r.Passed = true
		r.Evidence = fmt.Sprintf("%d modifications across %d of %d builds", total, withMods, len(builds))
	} else {
		r.Evidence = fmt.Sprintf("only %d modifications extracted, need at least %d", total, v.scoring.MinMods)
	}

	coverage := Result{
		Condition: CondCountGTE,
		Target:    path,
		Expected:  "at least one build with modifications",
		Actual:    fmt.Sprintf("count = %d", withMods),
	}
	if withMods >= 1 {
		coverage.Passed = true
		coverage.Evidence = fmt.Sprintf("%d of %d builds carry modifications", withMods, len(builds))
	} else {
		coverage.Evidence = fmt.Sprintf("none of the %d builds carry modifications", len(builds))
	}

	return []Result{r, coverage}
}
