package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/procsight/procsight/internal/pipeline"
)

// CLIProgressReporter implements pipeline progress reporting with
// progress bars.
type CLIProgressReporter struct {
	quiet     bool
	bar       *progressbar.ProgressBar
	startTime time.Time
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		startTime: time.Now(),
	}
}

var _ pipeline.ProgressReporter = (*CLIProgressReporter)(nil)

func (c *CLIProgressReporter) OnFetchComplete(processes, objects int) {
	if c.quiet {
		return
	}
	log.Printf("Loaded %d processes and %d objects\n", processes, objects)
}

func (c *CLIProgressReporter) OnAnalysisStart(totalDefinitions int) {
	if c.quiet {
		return
	}
	c.bar = progressbar.NewOptions(totalDefinitions,
		progressbar.OptionSetDescription("Auditing definitions"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("defs/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) OnDefinitionProcessed(name string) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(processed, skipped int) {
	if c.quiet {
		return
	}
	log.Printf("Audit complete: %d definitions processed, %d skipped (%.1fs)\n",
		processed, skipped, time.Since(c.startTime).Seconds())
}
