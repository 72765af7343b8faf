// Package models defines the shared data types for the Semgrep MCP server:
// code files submitted for scanning, scan results parsed from the Semgrep
// CLI JSON output, and findings returned by the Semgrep web API.
package models

import "time"

// CodeFile is one file submitted for scanning. Depending on the tool that
// produced it, Path may be a real filesystem path or just a bookkeeping
// name supplied by the client; Content is always authoritative.
type CodeFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ScanResult is the parsed output of `semgrep scan --json`.
type ScanResult struct {
	Version      string           `json:"version"`
	Results      []map[string]any `json:"results"`
	Errors       []map[string]any `json:"errors"`
	Paths        ScanPaths        `json:"paths"`
	SkippedRules []string         `json:"skipped_rules,omitempty"`
}

// ScanPaths lists which files Semgrep scanned and which it skipped.
type ScanPaths struct {
	Scanned []string         `json:"scanned,omitempty"`
	Skipped []map[string]any `json:"skipped,omitempty"`
}

// ─── Web API findings ────────────────────────────────────────

// Location is a source position within a scanned file.
type Location struct {
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
}

// Repository identifies the repository a finding belongs to.
type Repository struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Rule describes the rule that produced a finding.
type Rule struct {
	Name                 string   `json:"name"`
	Message              string   `json:"message"`
	Confidence           string   `json:"confidence"`
	Category             string   `json:"category"`
	Subcategories        []string `json:"subcategories"`
	VulnerabilityClasses []string `json:"vulnerability_classes"`
	CWENames             []string `json:"cwe_names"`
	OWASPNames           []string `json:"owasp_names"`
}

// Autofix is an assistant-suggested code fix for a finding.
type Autofix struct {
	FixCode     string `json:"fix_code"`
	Explanation string `json:"explanation"`
}

// Guidance is assistant remediation guidance for a finding.
type Guidance struct {
	Summary      string `json:"summary"`
	Instructions string `json:"instructions"`
}

// Autotriage is the assistant's triage verdict for a finding.
type Autotriage struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// Component tags a finding with the affected component and its risk.
type Component struct {
	Tag  string `json:"tag"`
	Risk string `json:"risk"`
}

// Assistant groups the optional AI-assistant annotations on a finding.
type Assistant struct {
	Autofix    *Autofix    `json:"autofix,omitempty"`
	Guidance   *Guidance   `json:"guidance,omitempty"`
	Autotriage *Autotriage `json:"autotriage,omitempty"`
	Component  *Component  `json:"component,omitempty"`
}

// Finding is one finding from the Semgrep web API.
type Finding struct {
	ID              int        `json:"id"`
	Ref             string     `json:"ref"`
	FirstSeenScanID int        `json:"first_seen_scan_id"`
	SyntacticID     string     `json:"syntactic_id"`
	MatchBasedID    string     `json:"match_based_id"`
	Repository      Repository `json:"repository"`
	LineOfCodeURL   string     `json:"line_of_code_url"`
	TriageState     string     `json:"triage_state"`
	State           string     `json:"state"`
	Status          string     `json:"status"`
	Severity        string     `json:"severity"`
	Confidence      string     `json:"confidence"`
	Categories      []string   `json:"categories"`
	CreatedAt       time.Time  `json:"created_at"`
	RelevantSince   time.Time  `json:"relevant_since"`
	RuleName        string     `json:"rule_name"`
	RuleMessage     string     `json:"rule_message"`
	Location        Location   `json:"location"`
	TriagedAt       *time.Time `json:"triaged_at,omitempty"`
	TriageComment   string     `json:"triage_comment,omitempty"`
	TriageReason    string     `json:"triage_reason,omitempty"`
	StateUpdatedAt  time.Time  `json:"state_updated_at"`
	Rule            Rule       `json:"rule"`
	Assistant       *Assistant `json:"assistant,omitempty"`
}
