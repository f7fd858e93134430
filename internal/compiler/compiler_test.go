package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/escaco95/vjassp/internal/config"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lower"
)

func compileFile(t *testing.T, entry string, tags config.Tags) (*Result, *diagnostics.Collector, error) {
	t.Helper()
	collector := diagnostics.New()
	result, err := New(tags, collector).Compile(entry)
	return result, collector, err
}

func containsDiag(diags []diagnostics.Diag, substr string) bool {
	for _, d := range diags {
		if strings.Contains(d.Message, substr) {
			return true
		}
	}
	return false
}

func TestCompileClock(t *testing.T) {
	result, collector, err := compileFile(t, "testdata/clock.jp", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}

	initName := lower.InitTag("Clock", 0)
	expected := "library Clock initializer onInit\n" +
		"    globals\n" +
		"    endglobals\n" +
		"    private function " + initName + " takes nothing returns nothing\n" +
		"        local integer i = 1\n" +
		"        loop\n" +
		"            exitwhen i > 3\n" +
		"            set i = i + 1\n" +
		"        endloop\n" +
		"    endfunction\n" +
		"    private function onInit takes nothing returns nothing\n" +
		"        call " + initName + "()\n" +
		"    endfunction\n" +
		"endlibrary\n"
	if result.Output != expected {
		t.Errorf("expected %q, got %q", expected, result.Output)
	}
	if result.Target != "testdata/clock.j" {
		t.Errorf("expected target testdata/clock.j, got %q", result.Target)
	}
}

func TestCompileTicker(t *testing.T) {
	result, collector, err := compileFile(t, "testdata/tick.jp", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}

	initName := lower.InitTag("Ticker", 0)
	expected := "library Ticker initializer onInit\n" +
		"    globals\n" +
		"        integer elapsed = 0\n" +
		"    endglobals\n" +
		"    private struct tick\n" +
		"    endstruct\n" +
		"    private function Tick takes nothing returns nothing\n" +
		"        set elapsed = elapsed + 1\n" +
		"        if elapsed > 10 then\n" +
		"            call Log(\"tick \" + elapsed)\n" +
		"        endif\n" +
		"    endfunction\n" +
		"    private function " + initName + " takes nothing returns nothing\n" +
		"        local timer clock = CreateTimer()\n" +
		"        call TimerStart(clock, 0.5, true, function Tick)\n" +
		"    endfunction\n" +
		"    private function onInit takes nothing returns nothing\n" +
		"        call " + initName + "()\n" +
		"    endfunction\n" +
		"endlibrary\n"
	if result.Output != expected {
		t.Errorf("expected %q, got %q", expected, result.Output)
	}
}

func TestDeterministicOutput(t *testing.T) {
	first, _, err := compileFile(t, "testdata/tick.jp", nil)
	if err != nil {
		t.Fatalf("first compile failed: %v", err)
	}
	second, _, err := compileFile(t, "testdata/tick.jp", nil)
	if err != nil {
		t.Fatalf("second compile failed: %v", err)
	}
	if first.Output != second.Output {
		t.Errorf("outputs differ across runs:\n%q\n%q", first.Output, second.Output)
	}
}

func TestImportDedup(t *testing.T) {
	result, collector, err := compileFile(t, "testdata/dedup/main.jp", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}

	if got := strings.Count(result.Output, "library Shared"); got != 1 {
		t.Errorf("expected exactly one Shared library, found %d", got)
	}
	if len(result.Program.Units) != 2 {
		t.Errorf("expected 2 units after dedup, got %d", len(result.Program.Units))
	}
	sharedAt := strings.Index(result.Output, "library Shared")
	scopeAt := strings.Index(result.Output, "scope VJPS")
	if scopeAt == -1 {
		t.Fatalf("entry scope missing from output: %q", result.Output)
	}
	if sharedAt > scopeAt {
		t.Errorf("imported unit emitted after its importer")
	}
}

func TestSystemEpilogue(t *testing.T) {
	result, collector, err := compileFile(t, "testdata/system/main.jp", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}

	header := "library Clock initializer onInit requires Core, VJPLIBS"
	if !strings.Contains(result.Output, header) {
		t.Errorf("system header missing, output: %q", result.Output)
	}
	if !strings.HasSuffix(result.Output, "library VJPLIBS requires Core\nendlibrary\n") {
		t.Errorf("epilogue missing or misplaced, output: %q", result.Output)
	}
	coreAt := strings.Index(result.Output, "library Core")
	clockAt := strings.Index(result.Output, "library Clock")
	if coreAt == -1 || clockAt == -1 || coreAt > clockAt {
		t.Errorf("libraries out of order: Core at %d, Clock at %d", coreAt, clockAt)
	}

	if len(result.Program.Libraries) != 1 || result.Program.Libraries[0] != "Core" {
		t.Errorf("libraries recorded as %v", result.Program.Libraries)
	}
	if len(result.Program.Systems) != 1 || result.Program.Systems[0] != "Clock" {
		t.Errorf("systems recorded as %v", result.Program.Systems)
	}
}

func TestWhenImportGating(t *testing.T) {
	plain, collector, err := compileFile(t, "testdata/tags/main.jp", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}
	if strings.Contains(plain.Output, "library Dbg") {
		t.Errorf("untagged build included the gated import")
	}

	tagged, collector, err := compileFile(t, "testdata/tags/main.jp", config.ParseTags([]string{"DEBUG"}))
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}
	dbgAt := strings.Index(tagged.Output, "library Dbg")
	appAt := strings.Index(tagged.Output, "library App")
	if dbgAt == -1 {
		t.Fatalf("tagged build dropped the gated import: %q", tagged.Output)
	}
	if dbgAt > appAt {
		t.Errorf("gated import emitted after its importer")
	}
}

func TestMissingEntry(t *testing.T) {
	_, collector, err := compileFile(t, "testdata/nope.jp", nil)
	if err == nil {
		t.Fatalf("expected errors, got none")
	}
	if !containsDiag(collector.Diags, "no such file") {
		t.Errorf("expected a no-such-file diagnostic, got: %v", collector.Diags)
	}
}

func TestMissingImport(t *testing.T) {
	_, collector, err := compileFile(t, "testdata/bad/missing_import.jp", nil)
	if err == nil {
		t.Fatalf("expected errors, got none")
	}
	if !containsDiag(collector.Diags, `no such file "ghost"`) {
		t.Errorf("expected a diagnostic naming the import, got: %v", collector.Diags)
	}
}

func TestBadSyntax(t *testing.T) {
	_, collector, err := compileFile(t, "testdata/bad/syntax.jp", nil)
	if err == nil {
		t.Fatalf("expected errors, got none")
	}
	if len(collector.Diags) == 0 {
		t.Errorf("expected diagnostics, got none")
	}
}

func TestInconsistentDedent(t *testing.T) {
	_, collector, err := compileFile(t, "testdata/bad/dedent.jp", nil)
	if err == nil {
		t.Fatalf("expected errors, got none")
	}
	if !containsDiag(collector.Diags, "testdata/bad/dedent.jp:4:7: inconsistent dedent") {
		t.Errorf("expected the dedent diagnostic with its position, got: %v", collector.Diags)
	}
}

func TestCompileAndWrite(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.jp")
	src := "library Main:\n    global:\n        int x = 1\n"
	if err := os.WriteFile(entry, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	collector := diagnostics.New()
	result, err := New(nil, collector).CompileAndWrite(entry)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}
	if result.Target != filepath.Join(dir, "main.j") {
		t.Errorf("expected target next to the entry, got %q", result.Target)
	}
	written, err := os.ReadFile(result.Target)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(written) != result.Output {
		t.Errorf("written file differs from result output")
	}
}

func TestDefaultEntry(t *testing.T) {
	dir := t.TempDir()
	src := "library Main:\n    global:\n        int x = 1\n"
	if err := os.WriteFile(filepath.Join(dir, "main.jp"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	result, collector, err := compileFile(t, "", nil)
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}
	if result.Target != "main.j" {
		t.Errorf("expected target main.j, got %q", result.Target)
	}
	if !strings.Contains(result.Output, "library Main") {
		t.Errorf("default entry not compiled: %q", result.Output)
	}
}

func TestCompileSnippet(t *testing.T) {
	collector := diagnostics.New()
	output, err := New(nil, collector).CompileSnippet("content:\n    init:\n        call Boot()", "snippet.jp")
	if err != nil {
		t.Fatalf("unexpected errors: %v", collector.Diags)
	}

	scopeName := lower.ContentTag("snippet.jp", 0)
	initName := lower.InitTag(scopeName, 0)
	expected := "scope " + scopeName + " initializer onInit\n" +
		"    globals\n" +
		"    endglobals\n" +
		"    private function " + initName + " takes nothing returns nothing\n" +
		"        call Boot()\n" +
		"    endfunction\n" +
		"    private function onInit takes nothing returns nothing\n" +
		"        call " + initName + "()\n" +
		"    endfunction\n" +
		"endscope\n"
	if output != expected {
		t.Errorf("expected %q, got %q", expected, output)
	}
}

func TestTargetPath(t *testing.T) {
	tests := []struct {
		entry string
		want  string
	}{
		{"main.jp", "main.j"},
		{"dir/main.jp", "dir/main.j"},
		{"main.txt", "main.j"},
		{"main", "main.j"},
	}
	for _, test := range tests {
		if got := targetPath(test.entry); got != test.want {
			t.Errorf("targetPath(%q): expected %q, got %q", test.entry, test.want, got)
		}
	}
}
