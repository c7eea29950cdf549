// Package model defines the analysis report and the values that flow through
// the pipeline. The JSON tags on these types are the report schema consumed by
// renderers and Q&A context builders; treat them as a public contract.
package model

import "time"

// Language is the tag assigned to a source unit by the classifier.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	CSharp     Language = "csharp"
	Go         Language = "go"
	Ruby       Language = "ruby"
	PHP        Language = "php"
)

// AllLanguages lists every supported language tag in a stable order.
var AllLanguages = []Language{Python, JavaScript, TypeScript, Java, C, CPP, CSharp, Go, Ruby, PHP}

// SourceUnit is one collected file. It is immutable once read.
type SourceUnit struct {
	Path     string   `json:"path"` // slash-separated, relative to the collection root
	Language Language `json:"language"`
	Text     []byte   `json:"-"`
	Size     int64    `json:"size"`
	Digest   string   `json:"digest"` // hex blake3 of Text
}

// ImportToken is a single import/include/require statement found in a file.
type ImportToken struct {
	Raw       string   `json:"raw"`
	Line      int      `json:"line"`
	Statement string   `json:"statement,omitempty"`
	System    bool     `json:"system,omitempty"`   // angle-bracket include
	Relative  bool     `json:"relative,omitempty"` // resolve against the importing file first
	Names     []string `json:"names,omitempty"`    // imported names, when the target may be a submodule
}

// ResolutionStatus describes how an import token was resolved.
type ResolutionStatus string

const (
	Resolved   ResolutionStatus = "resolved"
	Unresolved ResolutionStatus = "unresolved"
	External   ResolutionStatus = "external"
	Ambiguous  ResolutionStatus = "ambiguous"
)

// ImportEdge is a resolved or unresolved import from one unit.
type ImportEdge struct {
	Source     string           `json:"source"`
	Raw        string           `json:"raw"`
	Line       int              `json:"line"`
	Target     string           `json:"target,omitempty"`
	Status     ResolutionStatus `json:"status"`
	Candidates []string         `json:"candidates,omitempty"`
}

// Dependency is a graph edge: Source imports Target.
type Dependency struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Raw    string `json:"raw"`
	Line   int    `json:"line"`
}

// Cycle is an elementary cycle, rotated to start at its smallest node.
type Cycle struct {
	Nodes []string `json:"nodes"`
}

// UnresolvedImport is an import that matched no file and no known package.
type UnresolvedImport struct {
	Raw  string `json:"raw"`
	Line int    `json:"line"`
}

// DependencyGraph is the serializable view of the import graph.
type DependencyGraph struct {
	Nodes  []string     `json:"nodes"`
	Edges  []Dependency `json:"edges"`
	Cycles []Cycle      `json:"cycles"`
	// CyclesTruncated is set when enumeration stopped at the configured cap.
	CyclesTruncated bool       `json:"cycles_truncated,omitempty"`
	BuildOrder      [][]string `json:"build_order"`
}

// Fragment locates a block of code inside a unit.
type Fragment struct {
	Path      string `json:"path"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Tokens    int    `json:"tokens"`
}

// Len returns the fragment's length in bytes.
func (f Fragment) Len() int { return f.EndByte - f.StartByte }

// DuplicateCluster groups fragments whose pairwise similarity meets the threshold.
type DuplicateCluster struct {
	ID             string     `json:"id"`
	Similarity     float64    `json:"similarity"`
	Representative Fragment   `json:"representative"`
	Fragments      []Fragment `json:"fragments"`
}

// Category groups quality rules.
type Category string

const (
	Security    Category = "security"
	Performance Category = "performance"
	Complexity  Category = "complexity"
	Style       Category = "style"
)

// AllCategories lists every rule category.
var AllCategories = []Category{Security, Performance, Complexity, Style}

// Severity ranks a quality issue.
type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// QualityIssue is one rule match.
type QualityIssue struct {
	Path      string   `json:"path"`
	RuleID    string   `json:"rule_id"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// Stage names the per-file step that failed.
type Stage string

const (
	StageRead     Stage = "read"
	StageExtract  Stage = "extract"
	StageScan     Stage = "scan"
	StageTokenize Stage = "tokenize"
	StageTimeout  Stage = "timeout"
)

// FileError is a non-fatal failure recorded against a single file.
type FileError struct {
	Path    string `json:"path"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// SkipReason explains why a file was left out of the analysis.
type SkipReason string

const (
	SkipTooLarge   SkipReason = "too-large"
	SkipUnreadable SkipReason = "unreadable"
	SkipExcluded   SkipReason = "excluded-language"
)

// SkippedFile is a file the collector refused.
type SkippedFile struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// FileSummary holds per-file rollups.
type FileSummary struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
	Size     int64    `json:"size"`
	Imports  int      `json:"imports"`
	Issues   int      `json:"issues"`
	Score    float64  `json:"score"`
	Rank     float64  `json:"rank"`
}

// ImportStats aggregates import counts over the run.
type ImportStats struct {
	Total    int                      `json:"total"`
	Unique   int                      `json:"unique"`
	ByStatus map[ResolutionStatus]int `json:"by_status"`
}

// TreeNode is one entry of the codebase structure (no file content).
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Dir      bool        `json:"dir,omitempty"`
	Language Language    `json:"language,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// RunMetadata identifies a run. It is the only part of a report that differs
// between two runs over the same input.
type RunMetadata struct {
	RunID     string           `json:"run_id"`
	Timestamp time.Time        `json:"timestamp"`
	Root      string           `json:"root"`
	FileCount int              `json:"file_count"`
	Languages map[Language]int `json:"languages"`
	Duration  time.Duration    `json:"duration_ns"`
	Digest    string           `json:"digest"`
}

// AnalysisReport is the complete result of a run. It is assembled once and
// never mutated afterwards; consumers must treat it as read-only.
type AnalysisReport struct {
	Metadata   RunMetadata                   `json:"metadata"`
	Files      []FileSummary                 `json:"files"`
	Imports    []ImportEdge                  `json:"imports"`
	ImportStat ImportStats                   `json:"import_stats"`
	Graph      DependencyGraph               `json:"graph"`
	Unresolved map[string][]UnresolvedImport `json:"unresolved"`
	Duplicates []DuplicateCluster            `json:"duplicates"`
	Issues     []QualityIssue                `json:"issues"`
	Errors     []FileError                   `json:"errors"`
	Skipped    []SkippedFile                 `json:"skipped"`
	Structure  *TreeNode                     `json:"structure,omitempty"`
}
