package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/evdealer/contractedit/internal/htmldoc"
	"github.com/evdealer/contractedit/internal/placeholder"
	"github.com/evdealer/contractedit/internal/progress"
)

var validateCmd = &cobra.Command{
	Use:   "validate [glob...]",
	Short: "Round-trip check contract template files",
	Long: `Validates template HTML files before they are uploaded to the backend:
each file is decomposed and recomposed, the result is checked for lost style
blocks and structural damage, and placeholder decoration is verified to be
reversible. Globs support ** (default: templates/**/*.html).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns := args
		if len(patterns) == 0 {
			patterns = []string{"templates/**/*.html"}
		}

		var files []string
		seen := map[string]bool{}
		for _, pattern := range patterns {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return fmt.Errorf("bad glob %q: %w", pattern, err)
			}
			for _, m := range matches {
				if !seen[m] {
					seen[m] = true
					files = append(files, m)
				}
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no template files matched %s", strings.Join(patterns, ", "))
		}
		sort.Strings(files)

		reporter := progress.NewReporter()
		reporter.Start(len(files))

		failures := 0
		for _, path := range files {
			problems := validateFile(path)
			reporter.File(path, len(problems) == 0)
			if len(problems) > 0 {
				failures++
				fmt.Fprintf(os.Stderr, "%s:\n", path)
				for _, p := range problems {
					fmt.Fprintf(os.Stderr, "  - %s\n", p)
				}
			} else if verbose {
				fmt.Fprintf(os.Stderr, "%s: ok\n", path)
			}
		}
		reporter.Finish()

		if failures > 0 {
			return fmt.Errorf("%d of %d template files failed validation", failures, len(files))
		}
		fmt.Printf("All %d template files are valid\n", len(files))
		return nil
	},
}

// validateFile runs the round-trip and placeholder checks on one file.
func validateFile(path string) []string {
	var problems []string

	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("reading file: %v", err)}
	}
	doc := string(data)

	s := htmldoc.Parse(doc)
	if strings.TrimSpace(s.Body) == "" {
		problems = append(problems, "document has no body content")
	}

	// Every style block of the source must survive recomposition.
	recomposed := htmldoc.Compose(s.Body, "validation", s)
	rs := htmldoc.Parse(recomposed)
	if rs.StyleBlocks != s.StyleBlocks {
		problems = append(problems, "style blocks were lost or altered by recomposition")
	}
	if rs.Body != s.Body {
		problems = append(problems, "body content was altered by recomposition")
	}
	if err := htmldoc.CheckWellFormed(recomposed); err != nil {
		problems = append(problems, fmt.Sprintf("recomposed document is malformed: %v", err))
	}

	// Placeholder decoration must be fully reversible.
	if got := placeholder.ToRaw(placeholder.ToEditable(s.Body)); got != s.Body {
		problems = append(problems, "placeholder decoration is not reversible")
	}
	for _, expr := range placeholder.Exprs(s.Body) {
		if expr == "" {
			problems = append(problems, "empty placeholder token {{ }}")
			break
		}
	}

	return problems
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
