package pipeline

// ProgressReporter provides callbacks for reporting pipeline progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnFetchComplete is called once the export rows have been loaded.
	OnFetchComplete(processes, objects int)

	// OnAnalysisStart is called before definitions are analyzed.
	OnAnalysisStart(totalDefinitions int)

	// OnDefinitionProcessed is called after each definition.
	OnDefinitionProcessed(name string)

	// OnComplete is called when the pipeline finishes successfully.
	OnComplete(processed, skipped int)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnFetchComplete(processes, objects int) {}
func (n *NoOpProgressReporter) OnAnalysisStart(totalDefinitions int)   {}
func (n *NoOpProgressReporter) OnDefinitionProcessed(name string)      {}
func (n *NoOpProgressReporter) OnComplete(processed, skipped int)      {}
