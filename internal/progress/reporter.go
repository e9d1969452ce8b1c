// Package progress narrates batch validation runs: a live bar for humans,
// line-by-line output for CI logs.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives one File call per template after its checks complete.
type Reporter interface {
	Start(total int)
	File(path string, ok bool)
	Finish()
}

// NewReporter picks a CIReporter when the CI or GITHUB_ACTIONS environment
// variable is set, a TerminalReporter otherwise.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return NewCIReporter(os.Stderr)
	}
	return &TerminalReporter{}
}

// TerminalReporter renders a progress bar and keeps a running failure count
// in its description so problems are visible before the run ends.
type TerminalReporter struct {
	bar    *progressbar.ProgressBar
	failed int
}

func (r *TerminalReporter) Start(total int) {
	r.failed = 0
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Validating templates"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) File(path string, ok bool) {
	if r.bar == nil {
		return
	}
	if !ok {
		r.failed++
	}
	if r.failed > 0 {
		r.bar.Describe(fmt.Sprintf("%s (%d failed)", path, r.failed))
	} else {
		r.bar.Describe(path)
	}
	_ = r.bar.Add(1)
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter writes one line per file, suitable for build logs.
type CIReporter struct {
	out    io.Writer
	total  int
	done   int
	failed int
}

func NewCIReporter(out io.Writer) *CIReporter {
	return &CIReporter{out: out}
}

func (r *CIReporter) Start(total int) {
	r.total = total
	r.done = 0
	r.failed = 0
	fmt.Fprintf(r.out, "Validating %d template files\n", total)
}

func (r *CIReporter) File(path string, ok bool) {
	r.done++
	verdict := "ok"
	if !ok {
		verdict = "FAIL"
		r.failed++
	}
	fmt.Fprintf(r.out, "[%d/%d] %s %s\n", r.done, r.total, verdict, path)
}

func (r *CIReporter) Finish() {
	if r.failed > 0 {
		fmt.Fprintf(r.out, "Validation finished: %d of %d files failed\n", r.failed, r.total)
		return
	}
	fmt.Fprintf(r.out, "Validation finished: all %d files passed\n", r.total)
}
