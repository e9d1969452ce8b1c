package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCIReporterCountsFailures(t *testing.T) {
	var buf bytes.Buffer
	r := NewCIReporter(&buf)

	r.Start(3)
	r.File("templates/lease.html", true)
	r.File("templates/purchase.html", false)
	r.File("templates/trade-in.html", true)
	r.Finish()

	out := buf.String()
	for _, want := range []string{
		"Validating 3 template files",
		"[1/3] ok templates/lease.html",
		"[2/3] FAIL templates/purchase.html",
		"[3/3] ok templates/trade-in.html",
		"1 of 3 files failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCIReporterAllPassing(t *testing.T) {
	var buf bytes.Buffer
	r := NewCIReporter(&buf)

	r.Start(1)
	r.File("templates/lease.html", true)
	r.Finish()

	if !strings.Contains(buf.String(), "all 1 files passed") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

func TestNewReporterPrefersCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter().(*CIReporter); !ok {
		t.Error("expected a CIReporter when CI is set")
	}

	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if _, ok := NewReporter().(*TerminalReporter); !ok {
		t.Error("expected a TerminalReporter outside CI")
	}
}
