package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/codescope/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/main.py", "src/main.py"},
		{"cycle", "a.py -> b.py", "a.py -> b.py"},
		{"message", "use of eval() on dynamic input", "use of eval() on dynamic input"},
		{"scoped package", "@scope/pkg", "@scope/pkg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func sampleReport() *model.AnalysisReport {
	return &model.AnalysisReport{
		Metadata: model.RunMetadata{Root: "proj", RunID: "r1", Digest: "d1"},
		Files: []model.FileSummary{
			{Path: "a.py", Language: model.Python, Size: 10, Imports: 1, Score: 10, Rank: 0.6},
			{Path: "b.py", Language: model.Python, Size: 20, Imports: 2, Issues: 1, Score: 8, Rank: 0.4},
		},
		Imports: []model.ImportEdge{
			{Source: "a.py", Raw: "b", Line: 1, Target: "b.py", Status: model.Resolved},
			{Source: "b.py", Raw: "a", Line: 1, Target: "a.py", Status: model.Resolved},
			{Source: "b.py", Raw: "util", Line: 2, Status: model.Ambiguous, Candidates: []string{"x/util.py", "y/util.py"}},
		},
		Graph: model.DependencyGraph{
			Nodes: []string{"a.py", "b.py"},
			Edges: []model.Dependency{
				{Source: "a.py", Target: "b.py", Raw: "b", Line: 1},
				{Source: "b.py", Target: "a.py", Raw: "a", Line: 1},
			},
			Cycles:     []model.Cycle{{Nodes: []string{"a.py", "b.py"}}},
			BuildOrder: [][]string{{"a.py", "b.py"}},
		},
		Unresolved: map[string][]model.UnresolvedImport{"b.py": {{Raw: "missing", Line: 3}}},
		Duplicates: []model.DuplicateCluster{{
			ID:         "dup-1",
			Similarity: 0.9,
			Fragments: []model.Fragment{
				{Path: "a.py", StartLine: 3, EndLine: 9, Tokens: 40},
				{Path: "b.py", StartLine: 5, EndLine: 11, Tokens: 40},
			},
		}},
		Issues: []model.QualityIssue{
			{Path: "b.py", RuleID: "py-eval", StartLine: 2, EndLine: 2, Category: model.Security, Severity: model.High, Message: "use of eval() on dynamic input"},
		},
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	got := Encode(sampleReport())
	want := []string{
		"root: proj",
		"run: r1",
		"digest: d1",
		"files[2]{path,language,size,imports,issues,score,rank}:",
		"  a.py,python,10,1,0,10.00,0.6000",
		"  b.py,python,20,2,1,8.00,0.4000",
		"imports[3]{source,raw,line,status,target}:",
		"  a.py,b,1,resolved,b.py",
		"  b.py,a,1,resolved,a.py",
		"  b.py,util,2,ambiguous,x/util.py y/util.py",
		"dependencies[2]{source,target,raw,line}:",
		"  a.py,b.py,b,1",
		"  b.py,a.py,a,1",
		"cycles[1]{id,nodes}:",
		"  1,a.py -> b.py",
		"build_order[1]{step,files}:",
		"  0,a.py b.py",
		"unresolved[1]{file,raw,line}:",
		"  b.py,missing,3",
		"duplicates[2]{cluster,similarity,path,start,end,tokens}:",
		"  dup-1,0.900,a.py,3,9,40",
		"  dup-1,0.900,b.py,5,11,40",
		"issues[1]{path,line,rule,category,severity,message}:",
		"  b.py,2,py-eval,security,high,use of eval() on dynamic input",
	}
	lines := strings.Split(got, "\n")
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeOptionalSections(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Graph.CyclesTruncated = true
	r.Errors = []model.FileError{{Path: "slow.py", Stage: model.StageTimeout, Message: "exceeded 10s"}}
	r.Skipped = []model.SkippedFile{{Path: "big.py", Reason: model.SkipTooLarge, Detail: ">1000000 bytes"}}

	got := Encode(r)
	for _, want := range []string{
		"cycles_truncated: true",
		"errors[1]{path,stage,message}:\n  slow.py,timeout,exceeded 10s",
		"skipped[1]{path,reason,detail}:\n  big.py,too-large,>1000000 bytes",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(&model.AnalysisReport{Metadata: model.RunMetadata{Root: "empty"}})
	for _, want := range []string{
		"files[0]{path,language,size,imports,issues,score,rank}:",
		"duplicates[0]{cluster,similarity,path,start,end,tokens}:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "errors[") || strings.Contains(got, "run:") {
		t.Errorf("empty optional sections should be omitted:\n%s", got)
	}
}
