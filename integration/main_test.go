//go:build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/novel-engine/integration/runner"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")

func apiBaseURL() string {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func TestMain(m *testing.M) {
	flag.Parse()
	fmt.Printf("Running Novel Engine Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", apiBaseURL())
	os.Exit(m.Run())
}

// TestIntegrationSuites plays every case file against a running API.
// Use -case to run selected cases: -case "linux_victory,errors"
func TestIntegrationSuites(t *testing.T) {
	if *errFlag != string(runner.ErrorHandlingExit) && *errFlag != string(runner.ErrorHandlingContinue) {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}

	files, err := caseFiles()
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	var jobs []runner.TestJob
	for _, file := range files {
		expanded, err := runner.LoadTestSuiteWithExpansion(file, "cases")
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expanded...)
	}

	testRunner := runner.NewRunner(apiBaseURL())
	testRunner.ErrorHandlingMode = runner.ErrorHandlingMode(*errFlag)
	testRunner.Logger = func(format string, args ...any) {
		fmt.Printf(format+"\n", args...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var failed []string
	for i, job := range jobs {
		t.Logf("[%d/%d] Starting test suite: %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))

		result, err := testRunner.RunSuite(ctx, job.Suite)
		t.Logf("Session ID: %s", result.Session)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", job.Name, err))
			t.Errorf("[%d/%d] FAILED: Test suite '%s' failed: %v", i+1, len(jobs), job.Name, err)
		} else {
			t.Logf("[%d/%d] PASSED: Test suite '%s' completed in %v", i+1, len(jobs), job.Name, result.Duration)
		}
		for _, step := range result.Results {
			if step.Success {
				t.Logf("   ✓ %s (%v, %d requests)", step.StepName, step.Duration, step.Requests)
			} else {
				t.Logf("   ✗ %s: %v", step.StepName, step.Error)
			}
		}
	}

	t.Logf("Integration Test Summary: %d passed, %d failed", len(jobs)-len(failed), len(failed))
	if len(failed) > 0 {
		for _, failure := range failed {
			t.Logf("   - %s", failure)
		}
	}
}

// caseFiles lists the selected case files. Sequence files are skipped when
// running everything, since their cases are discovered on their own.
func caseFiles() ([]string, error) {
	if *caseFlag != "" {
		var files []string
		for _, name := range strings.Split(*caseFlag, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if !strings.HasSuffix(name, ".yaml") {
				name += ".yaml"
			}
			files = append(files, filepath.Join("cases", name))
		}
		return files, nil
	}

	files, err := filepath.Glob(filepath.Join("cases", "*.yaml"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		suite, err := runner.LoadTestSuite(f)
		if err != nil {
			return nil, err
		}
		if !suite.IsSequence() {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out, nil
}
