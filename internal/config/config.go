package config

// Config represents the complete procsight configuration.
// It can be loaded from .procsight/config.yml with environment variable overrides.
type Config struct {
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Analyzer AnalyzerConfig `yaml:"analyzer" mapstructure:"analyzer"`
}

// StorageConfig locates the audit database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"` // sqlite database file
}

// ReportConfig configures report and export outputs.
type ReportConfig struct {
	Customer  string `yaml:"customer" mapstructure:"customer"`     // name shown in the report header
	HTMLPath  string `yaml:"html_path" mapstructure:"html_path"`   // HTML report output file
	JSONLPath string `yaml:"jsonl_path" mapstructure:"jsonl_path"` // code stage export file
}

// AnalyzerConfig tunes the code analysis pass.
type AnalyzerConfig struct {
	MaxFormatBytes int `yaml:"max_format_bytes" mapstructure:"max_format_bytes"` // formatting cutoff; 0 = default, negative = unlimited
	Workers        int `yaml:"workers" mapstructure:"workers"`                   // analysis workers; 0 = NumCPU
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DBPath: "procsight.db",
		},
		Report: ReportConfig{
			HTMLPath:  "procsight-report.html",
			JSONLPath: "code-stages.jsonl",
		},
		Analyzer: AnalyzerConfig{},
	}
}
