package graph

import (
	"math"
	"path"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/phobologic/codescope/internal/imports"
	"github.com/phobologic/codescope/internal/lang"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/registry"
)

// build classifies and extracts files the way the engine does, then builds
// the graph. Manifests (go.mod, package.json, ...) are fed to the registry.
func build(t *testing.T, files map[string]string) *Graph {
	t.Helper()
	reg, err := registry.New()
	if err != nil {
		t.Fatal(err)
	}
	var units []model.SourceUnit
	tokens := make(map[string][]model.ImportToken)
	for p, src := range files {
		if registry.IsManifest(path.Base(p)) {
			if err := reg.AddManifest(registry.Manifest{Path: p, Data: []byte(src)}); err != nil {
				t.Fatal(err)
			}
			continue
		}
		l, ok := lang.Classify(p, []byte(src))
		if !ok {
			t.Fatalf("unclassified test file %s", p)
		}
		units = append(units, model.SourceUnit{Path: p, Language: l, Text: []byte(src)})
		tokens[p] = imports.All(imports.For(l), []byte(src))
	}
	return Build(units, tokens, reg, Options{MaxCycles: 1000})
}

func edgePairs(g *Graph) []string {
	var out []string
	for _, e := range g.Edges() {
		out = append(out, e.Source+"->"+e.Target)
	}
	return out
}

func importFor(g *Graph, src, raw string) model.ImportEdge {
	for _, ie := range g.Imports() {
		if ie.Source == src && ie.Raw == raw {
			return ie
		}
	}
	return model.ImportEdge{}
}

func TestSimpleCycle(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import c\n",
		"c.py": "import a\n",
	})

	if got := edgePairs(g); !reflect.DeepEqual(got, []string{"a.py->b.py", "b.py->c.py", "c.py->a.py"}) {
		t.Fatalf("edges: %v", got)
	}
	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d: %+v", len(cycles), cycles)
	}
	if !reflect.DeepEqual(cycles[0].Nodes, []string{"a.py", "b.py", "c.py"}) {
		t.Errorf("cycle = %v", cycles[0].Nodes)
	}
	order := g.BuildOrder()
	if len(order) != 1 || len(order[0]) != 3 {
		t.Errorf("cycle members should share one build group: %v", order)
	}
}

func TestCyclesAreElementaryAndUnique(t *testing.T) {
	t.Parallel()

	// Two cycles share node a: a->b->a and a->c->d->a, plus b->c bridging.
	g := build(t, map[string]string{
		"a.py": "import b\nimport c\n",
		"b.py": "import a\nimport c\n",
		"c.py": "import d\n",
		"d.py": "import a\n",
	})

	var got []string
	for _, c := range g.Cycles() {
		seen := map[string]bool{}
		for _, n := range c.Nodes {
			if seen[n] {
				t.Errorf("cycle %v repeats %s", c.Nodes, n)
			}
			seen[n] = true
		}
		if c.Nodes[0] != "a.py" {
			t.Errorf("cycle %v not rotated to its smallest node", c.Nodes)
		}
		got = append(got, strings.Join(c.Nodes, " "))
	}
	sort.Strings(got)
	want := []string{"a.py b.py", "a.py b.py c.py d.py", "a.py c.py d.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cycles = %v, want %v", got, want)
	}
	// Cached: the same slice comes back.
	if &g.Cycles()[0] != &g.Cycles()[0] {
		t.Error("cycles not cached")
	}
}

func TestMaxCycles(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	// Complete graph on 5 nodes has many elementary cycles.
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		src := ""
		for _, m := range names {
			if m != n {
				src += "import " + m + "\n"
			}
		}
		files[n+".py"] = src
	}
	g := build(t, files)
	g.maxCycles = 3
	if n := len(g.Cycles()); n != 3 {
		t.Errorf("expected 3 cycles at the cap, got %d", n)
	}
	if !g.Snapshot().CyclesTruncated {
		t.Error("expected truncation flag")
	}
}

func TestNoImportsNoEdges(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "x = 1\n",
		"b.py": "import a\n",
	})
	for _, e := range g.Edges() {
		if e.Source == "a.py" {
			t.Errorf("file without imports produced edge %+v", e)
		}
	}
	if len(g.Nodes()) != 2 {
		t.Errorf("every unit is a node: %v", g.Nodes())
	}
}

func TestUnresolvedAndExternal(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"app.py": "import os\nimport requests\nimport totally_missing_pkg\n",
	})
	if len(g.Edges()) != 0 {
		t.Errorf("expected no edges, got %v", edgePairs(g))
	}
	un := g.Unresolved()["app.py"]
	if len(un) != 1 || un[0].Raw != "totally_missing_pkg" || un[0].Line != 3 {
		t.Fatalf("unresolved = %+v", un)
	}
	if s := importFor(g, "app.py", "os").Status; s != model.External {
		t.Errorf("os status = %s", s)
	}
	if s := importFor(g, "app.py", "requests").Status; s != model.External {
		t.Errorf("requests status = %s", s)
	}
	st := g.Stats()
	if st.Total != 3 || st.ByStatus[model.Unresolved] != 1 || st.ByStatus[model.External] != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestAmbiguousResolution(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"main.py":          "import helpers\n",
		"left/helpers.py":  "",
		"right/helpers.py": "",
		"pkg/mod.py":       "import helpers\n",
		"pkg/helpers.py":   "",
	})

	amb := importFor(g, "main.py", "helpers")
	if amb.Status != model.Ambiguous {
		t.Fatalf("main.py helpers status = %s", amb.Status)
	}
	if !reflect.DeepEqual(amb.Candidates, []string{"left/helpers.py", "pkg/helpers.py", "right/helpers.py"}) {
		t.Errorf("candidates = %v", amb.Candidates)
	}
	// The nearest candidate wins when it is unique.
	if ie := importFor(g, "pkg/mod.py", "helpers"); ie.Status != model.Resolved || ie.Target != "pkg/helpers.py" {
		t.Errorf("pkg/mod.py helpers = %+v", ie)
	}
	for _, e := range g.Edges() {
		if e.Source == "main.py" {
			t.Errorf("ambiguous import produced edge %+v", e)
		}
	}
}

func TestPythonRelativeAndSubmodules(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/core.py":     "from . import util\nfrom .models import User\nfrom ..top import thing\n",
		"pkg/util.py":     "",
		"pkg/models.py":   "",
		"top.py":          "",
		"app.py":          "from pkg import core, util\n",
	})
	want := []string{
		"app.py->pkg/core.py",
		"app.py->pkg/util.py",
		"pkg/core.py->pkg/models.py",
		"pkg/core.py->pkg/util.py",
		"pkg/core.py->top.py",
	}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v\nwant %v", got, want)
	}
}

func TestPythonFromImportMixesSubmodulesAndNames(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"pkg/__init__.py": "def helper():\n    pass\n",
		"pkg/sub.py":      "",
		"app.py":          "from pkg import sub, helper\n",
		"only.py":         "from pkg import sub\n",
	})
	want := []string{
		"app.py->pkg/__init__.py",
		"app.py->pkg/sub.py",
		"only.py->pkg/sub.py",
	}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v\nwant %v", got, want)
	}
	if ie := importFor(g, "app.py", "pkg"); ie.Target != "pkg/sub.py" {
		t.Errorf("target = %q", ie.Target)
	}
}

func TestSelfImportHasNoTarget(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "import a\n",
	})
	ie := importFor(g, "a.py", "a")
	if ie.Status != model.Resolved || ie.Target != "" {
		t.Errorf("self import = %+v", ie)
	}
	if len(g.Edges()) != 0 {
		t.Errorf("edges = %v", edgePairs(g))
	}
}

func TestEcmaResolution(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"src/app.ts":        "import { a } from './lib/a';\nimport b from './lib';\nimport c from './c.js';\nimport React from 'react';\n",
		"src/lib/a.ts":      "export const a = 1;\n",
		"src/lib/index.tsx": "export default 2;\n",
		"src/c.ts":          "export default 3;\n",
		"package.json":      `{"dependencies": {"react": "^18"}}`,
	})
	want := []string{"src/app.ts->src/c.ts", "src/app.ts->src/lib/a.ts", "src/app.ts->src/lib/index.tsx"}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v", got)
	}
	if s := importFor(g, "src/app.ts", "react").Status; s != model.External {
		t.Errorf("react status = %s", s)
	}
}

func TestJavaResolution(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"src/main/java/com/acme/App.java":          "package com.acme;\nimport com.acme.util.Strings;\nimport com.acme.model.*;\nimport static com.acme.util.Strings.trim;\nimport java.util.List;\n",
		"src/main/java/com/acme/util/Strings.java": "package com.acme.util;\n",
		"src/main/java/com/acme/model/User.java":   "package com.acme.model;\n",
		"src/main/java/com/acme/model/Order.java":  "package com.acme.model;\n",
	})
	want := []string{
		"src/main/java/com/acme/App.java->src/main/java/com/acme/model/Order.java",
		"src/main/java/com/acme/App.java->src/main/java/com/acme/model/User.java",
		"src/main/java/com/acme/App.java->src/main/java/com/acme/util/Strings.java",
	}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v", got)
	}
	if s := importFor(g, "src/main/java/com/acme/App.java", "com.acme.util.Strings.trim").Status; s != model.Resolved {
		t.Errorf("static import status = %s", s)
	}
}

func TestCFamilyResolution(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"src/main.c":         "#include \"util.h\"\n#include <stdio.h>\n#include \"net/sock.h\"\n",
		"src/util.h":         "",
		"include/net/sock.h": "",
	})
	want := []string{"src/main.c->include/net/sock.h", "src/main.c->src/util.h"}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v", got)
	}
	if s := importFor(g, "src/main.c", "stdio.h").Status; s != model.External {
		t.Errorf("stdio.h status = %s", s)
	}
}

func TestGoPackageImportsAllFiles(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"go.mod":                   "module example.com/svc\n\ngo 1.22\n",
		"cmd/main.go":              "package main\n\nimport (\n\t\"fmt\"\n\t\"example.com/svc/internal/store\"\n)\n",
		"internal/store/a.go":      "package store\n",
		"internal/store/b.go":      "package store\n",
		"internal/store/a_test.go": "package store\n",
	})
	want := []string{"cmd/main.go->internal/store/a.go", "cmd/main.go->internal/store/b.go"}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v", got)
	}
	if s := importFor(g, "cmd/main.go", "fmt").Status; s != model.External {
		t.Errorf("fmt status = %s", s)
	}
}

func TestCSharpRubyPHP(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"App/Program.cs":      "using System;\nusing Acme.Core;\nnamespace Acme.App { }\n",
		"Core/Widget.cs":      "namespace Acme.Core\n{\n}\n",
		"Core/Gadget.cs":      "namespace Acme.Core;\n",
		"lib/shop.rb":         "require 'json'\nrequire_relative 'shop/cart'\nrequire 'shop/price'\n",
		"lib/shop/cart.rb":    "",
		"lib/shop/price.rb":   "",
		"public/index.php":    "<?php\nrequire __DIR__ . '/../src/bootstrap.php';\nuse App\\Models\\User;\n",
		"src/bootstrap.php":   "<?php\n",
		"src/Models/User.php": "<?php\nnamespace App\\Models;\n",
	})
	want := []string{
		"App/Program.cs->Core/Gadget.cs",
		"App/Program.cs->Core/Widget.cs",
		"lib/shop.rb->lib/shop/cart.rb",
		"lib/shop.rb->lib/shop/price.rb",
		"public/index.php->src/Models/User.php",
		"public/index.php->src/bootstrap.php",
	}
	if got := edgePairs(g); !reflect.DeepEqual(got, want) {
		t.Errorf("edges = %v\nwant %v", got, want)
	}
}

func TestEdgesDeduplicated(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "import b\nfrom b import thing\nimport a\n",
		"b.py": "",
	})
	if got := edgePairs(g); !reflect.DeepEqual(got, []string{"a.py->b.py"}) {
		t.Errorf("edges = %v", got)
	}
	if g.Edges()[0].Line != 1 {
		t.Errorf("first token should win, got line %d", g.Edges()[0].Line)
	}
}

func TestBuildOrderAcyclic(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"app.py":     "import service\n",
		"service.py": "import db\nimport util\n",
		"db.py":      "import util\n",
		"util.py":    "",
	})
	want := [][]string{{"util.py"}, {"db.py"}, {"service.py"}, {"app.py"}}
	if got := g.BuildOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("build order = %v", got)
	}
	if len(g.Cycles()) != 0 {
		t.Errorf("unexpected cycles %v", g.Cycles())
	}
}

func TestBuildOrderLevels(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "import c\n",
		"b.py": "import c\n",
		"c.py": "",
		"d.py": "import a\nimport x\n",
		"x.py": "import y\n",
		"y.py": "import x\n",
	})
	want := [][]string{{"c.py", "x.py", "y.py"}, {"a.py", "b.py"}, {"d.py"}}
	if got := g.BuildOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("build order = %v, want %v", got, want)
	}
}

func TestRank(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{
		"a.py": "import c\n",
		"b.py": "import c\n",
		"c.py": "",
	})
	ranks := g.Rank()
	if ranks["c.py"] <= ranks["a.py"] || ranks["c.py"] <= ranks["b.py"] {
		t.Errorf("c.py should rank highest: %v", ranks)
	}
	var sum float64
	for _, r := range ranks {
		sum += r
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("ranks should sum to ~1.0, got %f", sum)
	}
}

func TestRankNoEdges(t *testing.T) {
	t.Parallel()

	g := build(t, map[string]string{"a.py": "", "b.py": ""})
	ranks := g.Rank()
	if math.Abs(ranks["a.py"]-0.5) > 0.001 || math.Abs(ranks["b.py"]-0.5) > 0.001 {
		t.Errorf("expected uniform 0.5 ranks, got %v", ranks)
	}
}

func TestHops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{".", ".", 0},
		{"a", ".", 1},
		{"a/b", "a/c", 2},
		{"a/b/c", "a", 2},
		{"x", "y/z", 3},
	}
	for _, tt := range tests {
		if got := hops(tt.a, tt.b); got != tt.want {
			t.Errorf("hops(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
