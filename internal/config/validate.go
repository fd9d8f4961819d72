package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"goldrates/internal/datasource/httpds"
	"goldrates/internal/logging"
	"goldrates/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the user but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "db.kind", "outputs.csv").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Errors returns only the blocking issues.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

// Validate performs static checks over c. It touches no files or databases;
// storage kinds are checked against the backends registered in this binary.
func Validate(c Config) []Issue {
	var issues []Issue
	issues = append(issues, validateInput(c)...)
	issues = append(issues, validateOutputs(c)...)
	issues = append(issues, validateDB(c.DB)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateLog(c.Log)...)
	return issues
}

func validateInput(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Input) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input",
			Message:  "input must not be empty",
		})
	}
	if c.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "chunk_size",
			Message:  fmt.Sprintf("chunk_size must be > 0, got %d", c.ChunkSize),
		})
	}
	if _, err := c.CommaRune(); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "comma",
			Message:  err.Error(),
		})
	}
	switch {
	case c.Precision < -1:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "precision",
			Message:  fmt.Sprintf("precision must be >= -1, got %d", c.Precision),
		})
	case c.Precision > 15:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "precision",
			Message:  fmt.Sprintf("precision=%d exceeds float64 significance; values are stored as doubles", c.Precision),
		})
	}
	if c.AllowMissingRateColumns {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "allow_missing_rate_columns",
			Message:  "missing rate columns will produce all-empty derived columns",
		})
	}
	return issues
}

func validateOutputs(c Config) []Issue {
	var issues []Issue

	outs := []struct {
		path, value, ext string
	}{
		{"outputs.csv", c.Outputs.CSV, ".csv"},
		{"outputs.xlsx", c.Outputs.XLSX, ".xlsx"},
		{"outputs.parquet", c.Outputs.Parquet, ".parquet"},
	}
	seen := map[string]string{}
	var in string
	if !httpds.IsURL(c.Input) {
		in = cleanPath(c.Input)
	}
	for _, o := range outs {
		if strings.TrimSpace(o.value) == "" {
			continue
		}
		p := cleanPath(o.value)
		if in != "" && p == in {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     o.path,
				Message:  "output path must differ from input",
			})
		}
		if other, ok := seen[p]; ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     o.path,
				Message:  fmt.Sprintf("output path already used by %s", other),
			})
		}
		seen[p] = o.path
		if !strings.EqualFold(filepath.Ext(p), o.ext) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     o.path,
				Message:  fmt.Sprintf("%q does not end in %s", o.value, o.ext),
			})
		}
	}
	return issues
}

func validateDB(db DBConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(db.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.kind",
			Message:  "db.kind must not be empty",
		})
	} else if !storage.Registered(db.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.kind",
			Message:  fmt.Sprintf("unknown db kind %q; registered: %s", db.Kind, strings.Join(storage.ListKinds(), ", ")),
		})
	}
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.dsn",
			Message:  "db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.table",
			Message:  "db.table must not be empty",
		})
	} else if strings.ContainsAny(db.Table, " \t\r\n;") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.table",
			Message:  fmt.Sprintf("db.table %q must not contain whitespace or ';'", db.Table),
		})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", MetricsNone:
	case MetricsPushgateway:
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires a URL",
			})
		}
	case MetricsDatadog:
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires an agent address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; use none, pushgateway or datadog", m.Backend),
		})
	}
	return issues
}

func validateLog(l LogConfig) []Issue {
	if _, err := logging.ParseLevel(logging.Options{Level: l.Level}); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "log.level",
			Message:  err.Error(),
		}}
	}
	return nil
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
