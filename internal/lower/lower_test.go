package lower

import (
	"strings"
	"testing"

	"github.com/escaco95/vjassp/internal/ast"
	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
	"github.com/escaco95/vjassp/internal/parser"
)

func lowerSource(t *testing.T, src string) (*ast.Program, *diagnostics.Collector, error) {
	t.Helper()
	unit, collector, err := parser.ParseUnitFrom(src, "test.jp")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	program := &ast.Program{Units: []*ast.Unit{unit}}
	err = New(collector).Lower(program)
	return program, collector, err
}

func containsDiag(diags []diagnostics.Diag, substr string) bool {
	for _, d := range diags {
		if strings.Contains(d.Message, substr) {
			return true
		}
	}
	return false
}

func firstContainer(t *testing.T, program *ast.Program) *ast.Container {
	t.Helper()
	container, ok := program.Units[0].Decls[0].(*ast.Container)
	if !ok {
		t.Fatalf("expected container, got %T", program.Units[0].Decls[0])
	}
	return container
}

func TestSyntheticTags(t *testing.T) {
	if ContentTag("a.jp", 0) != ContentTag("a.jp", 0) {
		t.Fatalf("content tags are not stable across calls")
	}
	if ContentTag("a.jp", 0) == ContentTag("a.jp", 1) {
		t.Fatalf("content tags do not vary with the ordinal")
	}
	if ContentTag("a.jp", 0) == ContentTag("b.jp", 0) {
		t.Fatalf("content tags do not vary with the path")
	}
	if InitTag("Lib", 0) == InitTag("Lib", 1) {
		t.Fatalf("init tags do not vary with the ordinal")
	}

	tag := ContentTag("a.jp", 0)
	if len(tag) != 20 || !strings.HasPrefix(tag, "VJPS") {
		t.Fatalf("malformed content tag %q", tag)
	}
	for _, digit := range tag[4:] {
		if !strings.ContainsRune("0123456789ABCDEF", digit) {
			t.Fatalf("content tag %q is not uppercase hex", tag)
		}
	}
	if !strings.HasPrefix(InitTag("Lib", 0), "VJPI") {
		t.Fatalf("malformed init tag %q", InitTag("Lib", 0))
	}
}

func TestAnonymousNaming(t *testing.T) {
	input := "content:\n" +
		"    int a = 1\n" +
		"\n" +
		"scope Named:\n" +
		"    content:\n" +
		"        int b = 2\n" +
		"\n" +
		"content:\n" +
		"    int c = 3\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decls := program.Units[0].Decls
	first := decls[0].(*ast.Container)
	named := decls[1].(*ast.Container)
	last := decls[2].(*ast.Container)

	if first.ResolvedName != ContentTag("test.jp", 0) {
		t.Fatalf("first content resolved to %q", first.ResolvedName)
	}
	if named.ResolvedName != "Named" {
		t.Fatalf("named scope resolved to %q", named.ResolvedName)
	}
	nested := named.Members[0].(*ast.Container)
	if nested.ResolvedName != ContentTag("test.jp", 1) {
		t.Fatalf("nested content resolved to %q", nested.ResolvedName)
	}
	if last.ResolvedName != ContentTag("test.jp", 2) {
		t.Fatalf("last content resolved to %q", last.ResolvedName)
	}
}

func TestAliasResolution(t *testing.T) {
	input := "library L:\n" +
		"    alias unitid extends int\n" +
		"    unitid id = 'h000'\n" +
		"    Reach(float dist) -> bool:\n" +
		"        str label = \"x\"\n" +
		"        return true\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	container := firstContainer(t, program)
	variable := container.Members[1].(*ast.VarDecl)
	if got := variable.Type.Target(); got != "integer" {
		t.Fatalf("unitid resolved to %q, expected integer", got)
	}

	fn := container.Members[2].(*ast.FnDecl)
	if got := fn.Params[0].Type.Target(); got != "real" {
		t.Fatalf("float resolved to %q, expected real", got)
	}
	if got := fn.RetType.Target(); got != "boolean" {
		t.Fatalf("bool resolved to %q, expected boolean", got)
	}
	if got := fn.Locals[0].Type.Target(); got != "string" {
		t.Fatalf("str resolved to %q, expected string", got)
	}
}

func TestAliasDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		diag string
	}{
		{
			name: "duplicate alias",
			src:  "library L:\n    alias id extends int\n    alias id extends str\n",
			diag: "duplicate alias 'id'",
		},
		{
			name: "builtin redefinition",
			src:  "library L:\n    alias int extends str\n",
			diag: "duplicate alias 'int'",
		},
		{
			name: "alias cycle",
			src:  "library L:\n    alias a extends b\n    alias b extends a\n",
			diag: "alias cycle involving 'a'",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, collector, err := lowerSource(t, test.src)
			if err == nil {
				t.Fatalf("expected lowering to fail")
			}
			if !containsDiag(collector.Diags, test.diag) {
				t.Fatalf("missing diagnostic %q in %v", test.diag, collector.Diags)
			}
		})
	}
}

func TestVisibilityResolution(t *testing.T) {
	input := "library L:\n" +
		"    int hidden = 1\n" +
		"    global:\n" +
		"        int shared = 2\n" +
		"    api:\n" +
		"        Tick():\n" +
		"            return\n" +
		"    global int inline_shared = 3\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	container := firstContainer(t, program)
	wantVis := []ast.Visibility{ast.VIS_PRIVATE, ast.VIS_GLOBAL, ast.VIS_API, ast.VIS_GLOBAL}
	for i, want := range wantVis {
		var got ast.Visibility
		switch member := container.Members[i].(type) {
		case *ast.VarDecl:
			got = member.Vis
		case *ast.FnDecl:
			got = member.Vis
		default:
			t.Fatalf("unexpected member %T at %d", member, i)
		}
		if got != want {
			t.Errorf("member %d visibility is %s, expected %s", i, got, want)
		}
	}
}

func TestMemberDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		diag string
	}{
		{
			name: "conflicting visibility",
			src:  "library L:\n    global:\n        api int x = 1\n",
			diag: "conflicting visibility modifiers for 'x'",
		},
		{
			name: "duplicate var and function",
			src:  "library L:\n    int tick = 1\n    tick():\n        return\n",
			diag: "duplicate declaration 'tick'",
		},
		{
			name: "duplicate nested scope name",
			src:  "library L:\n    scope util:\n        int x = 1\n    int util = 2\n",
			diag: "duplicate declaration 'util'",
		},
		{
			name: "onInit clashes with init blocks",
			src:  "library L:\n    init:\n        call Setup()\n    onInit():\n        return\n",
			diag: "'onInit' is reserved when init: blocks exist",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, collector, err := lowerSource(t, test.src)
			if err == nil {
				t.Fatalf("expected lowering to fail")
			}
			if !containsDiag(collector.Diags, test.diag) {
				t.Fatalf("missing diagnostic %q in %v", test.diag, collector.Diags)
			}
		})
	}
}

func TestInitWiring(t *testing.T) {
	input := "library Timekeeper:\n" +
		"    init:\n" +
		"        call Log(\"a\")\n" +
		"    init:\n" +
		"        call Log(\"b\")\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	container := firstContainer(t, program)
	want := []string{InitTag("Timekeeper", 0), InitTag("Timekeeper", 1)}
	if len(container.InitNames) != 2 {
		t.Fatalf("expected 2 init names, got %v", container.InitNames)
	}
	for i, name := range container.InitNames {
		if name != want[i] {
			t.Errorf("init name %d is %q, expected %q", i, name, want[i])
		}
		if !strings.HasPrefix(name, "VJPI") {
			t.Errorf("init name %d is %q, expected a VJPI tag", i, name)
		}
	}
	for i := 0; i < 2; i++ {
		initDecl := container.Members[i].(*ast.InitDecl)
		if initDecl.FuncName != want[i] {
			t.Errorf("init block %d wraps %q, expected %q", i, initDecl.FuncName, want[i])
		}
	}
}

func TestHoisting(t *testing.T) {
	input := "library L:\n" +
		"    Count(int n):\n" +
		"        int total = 0\n" +
		"        int step\n" +
		"        call Log(total)\n" +
		"        int extra = n + 1\n" +
		"        if n > 0:\n" +
		"            str label = \"x\"\n" +
		"        return\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := firstContainer(t, program).Members[0].(*ast.FnDecl)
	if len(fn.Locals) != 4 {
		t.Fatalf("expected 4 hoisted locals, got %d", len(fn.Locals))
	}
	wantNames := []string{"total", "step", "extra", "label"}
	for i, want := range wantNames {
		if got := fn.Locals[i].Name.Name(); got != want {
			t.Errorf("local %d is %q, expected %q", i, got, want)
		}
	}
	if fn.Locals[0].Value == nil {
		t.Errorf("leading local lost its initializer")
	}
	if fn.Locals[2].Value != nil {
		t.Errorf("split local kept its initializer")
	}

	statements := fn.Block.Statements
	if len(statements) != 4 {
		t.Fatalf("expected 4 statements after hoisting, got %d", len(statements))
	}
	assign, ok := statements[1].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected in-place assignment, got %T", statements[1])
	}
	if got := assign.LHS.(*ast.IdExpr).Name.Name(); got != "extra" {
		t.Errorf("in-place assignment targets %q, expected extra", got)
	}

	cond := statements[2].(*ast.CondStmt)
	nested, ok := cond.If.Block.Statements[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected nested local to become an assignment, got %T", cond.If.Block.Statements[0])
	}
	if got := nested.LHS.(*ast.IdExpr).Name.Name(); got != "label" {
		t.Errorf("nested assignment targets %q, expected label", got)
	}
}

func TestHoistingSpecialForms(t *testing.T) {
	input := "library L:\n" +
		"    Setup():\n" +
		"        call Prime()\n" +
		"        int limit ~ 50\n" +
		"        int *slots\n" +
		"        hashtable bag = {}\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := firstContainer(t, program).Members[0].(*ast.FnDecl)
	if len(fn.Locals) != 3 {
		t.Fatalf("expected 3 hoisted locals, got %d", len(fn.Locals))
	}

	limit := fn.Locals[0]
	if !limit.Constant || limit.Value == nil {
		t.Errorf("constant local lost its initializer on hoist")
	}
	slots := fn.Locals[1]
	if !slots.IsArray || slots.Value != nil {
		t.Errorf("array local hoisted wrong: array=%v value=%v", slots.IsArray, slots.Value)
	}
	bag := fn.Locals[2]
	if bag.Hashtable || bag.Value != nil {
		t.Errorf("hashtable local should hoist bare, got hashtable=%v value=%v", bag.Hashtable, bag.Value)
	}

	statements := fn.Block.Statements
	if len(statements) != 2 {
		t.Fatalf("expected call plus hashtable assignment, got %d statements", len(statements))
	}
	assign := statements[1].(*ast.AssignStmt)
	call, ok := assign.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("hashtable split assigned %T, expected a call", assign.Value)
	}
	if got := call.Callee.(*ast.IdExpr).Name.Name(); got != "InitHashtable" {
		t.Errorf("hashtable split calls %q, expected InitHashtable", got)
	}
}

func TestHoistingDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		diag string
	}{
		{
			name: "duplicate local",
			src:  "library L:\n    Count():\n        int a = 1\n        int a = 2\n",
			diag: "duplicate local 'a'",
		},
		{
			name: "local shadows parameter",
			src:  "library L:\n    Count(int a):\n        int a = 1\n",
			diag: "duplicate local 'a'",
		},
		{
			name: "duplicate parameter",
			src:  "library L:\n    Count(int a, int a):\n        return\n",
			diag: "duplicate parameter 'a'",
		},
		{
			name: "nested duplicate",
			src:  "library L:\n    Count():\n        int a = 1\n        if a > 0:\n            int a = 2\n",
			diag: "duplicate local 'a'",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, collector, err := lowerSource(t, test.src)
			if err == nil {
				t.Fatalf("expected lowering to fail")
			}
			if !containsDiag(collector.Diags, test.diag) {
				t.Fatalf("missing diagnostic %q in %v", test.diag, collector.Diags)
			}
		})
	}
}

func TestStatementRewrites(t *testing.T) {
	input := "library L:\n" +
		"    Run():\n" +
		"        int n = 0\n" +
		"        until n > 3:\n" +
		"            n++\n" +
		"        while n > 0:\n" +
		"            n--\n" +
		"            break\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := firstContainer(t, program).Members[0].(*ast.FnDecl)
	statements := fn.Block.Statements
	if len(statements) != 2 {
		t.Fatalf("expected 2 loops after rewriting, got %d", len(statements))
	}

	until, ok := statements[0].(*ast.LoopStmt)
	if !ok {
		t.Fatalf("until did not lower to a loop, got %T", statements[0])
	}
	exit := until.Block.Statements[0].(*ast.ExitwhenStmt)
	if cond, ok := exit.Cond.(*ast.BinExpr); !ok || cond.Op != token.GREATER {
		t.Errorf("until exit condition is %v", exit.Cond)
	}
	inc := until.Block.Statements[1].(*ast.AssignStmt)
	step, ok := inc.Value.(*ast.BinExpr)
	if !ok || step.Op != token.PLUS {
		t.Fatalf("n++ rewrote to %v", inc.Value)
	}
	if lit, ok := step.RHS.(*ast.LiteralExpr); !ok || lit.Value.Name() != "1" {
		t.Errorf("n++ step is %v, expected literal 1", step.RHS)
	}

	while, ok := statements[1].(*ast.LoopStmt)
	if !ok {
		t.Fatalf("while did not lower to a loop, got %T", statements[1])
	}
	negated := while.Block.Statements[0].(*ast.ExitwhenStmt)
	if unary, ok := negated.Cond.(*ast.UnaryExpr); !ok || unary.Op != token.NOT {
		t.Errorf("while exit condition is %v, expected a negation", negated.Cond)
	}
	dec := while.Block.Statements[1].(*ast.AssignStmt)
	if step, ok := dec.Value.(*ast.BinExpr); !ok || step.Op != token.MINUS {
		t.Errorf("n-- rewrote to %v", dec.Value)
	}
	brk := while.Block.Statements[2].(*ast.ExitwhenStmt)
	if lit, ok := brk.Cond.(*ast.LiteralExpr); !ok || lit.Value.Kind != token.TRUE {
		t.Errorf("break rewrote to exitwhen %v, expected true", brk.Cond)
	}
}

func TestDebugRewrite(t *testing.T) {
	input := "library L:\n" +
		"    Tick(int n):\n" +
		"        debug n++\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := firstContainer(t, program).Members[0].(*ast.FnDecl)
	debug, ok := fn.Block.Statements[0].(*ast.DebugStmt)
	if !ok {
		t.Fatalf("debug wrapper vanished, got %T", fn.Block.Statements[0])
	}
	if _, ok := debug.Wrapped.(*ast.AssignStmt); !ok {
		t.Fatalf("debug n++ wraps %T, expected an assignment", debug.Wrapped)
	}
}

func TestSystemLowering(t *testing.T) {
	input := "library Core:\n" +
		"    int x = 1\n" +
		"\n" +
		"system Clock:\n" +
		"    uses Core\n" +
		"    init:\n" +
		"        call Log(\"tick\")\n"

	program, _, err := lowerSource(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(program.Libraries) != 1 || program.Libraries[0] != "Core" {
		t.Fatalf("libraries recorded as %v", program.Libraries)
	}
	if len(program.Systems) != 1 || program.Systems[0] != "Clock" {
		t.Fatalf("systems recorded as %v", program.Systems)
	}

	clock := program.Units[0].Decls[1].(*ast.Container)
	if clock.Kind != ast.CONTAINER_LIBRARY {
		t.Errorf("system kept kind %s, expected library", clock.Kind)
	}
	if len(clock.Requires) != 2 {
		t.Fatalf("system requires %d entries, expected uses plus VJPLIBS", len(clock.Requires))
	}
	if got := clock.Requires[1].Name.Name(); got != VJPLIBS_NAME {
		t.Errorf("appended require is %q, expected %s", got, VJPLIBS_NAME)
	}
}

func TestLoweringDiagMessages(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			src:  "library L:\n    alias id extends int\n    alias id extends str\n",
			want: "test.jp:3:11: duplicate alias 'id'",
		},
		{
			src:  "library L:\n    Count():\n        int a = 1\n        int a = 2\n",
			want: "test.jp:4:13: duplicate local 'a'",
		},
		{
			src:  "library L:\n    global:\n        api int x = 1\n",
			want: "test.jp:3:17: conflicting visibility modifiers for 'x'",
		},
		{
			src:  "library L:\n    init:\n        call Setup()\n    onInit():\n        return\n",
			want: "test.jp:4:5: 'onInit' is reserved when init: blocks exist",
		},
	}

	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			_, collector, err := lowerSource(t, test.src)
			if err == nil {
				t.Fatalf("expected lowering to fail")
			}
			if len(collector.Diags) == 0 {
				t.Fatalf("no diagnostics reported")
			}
			if got := collector.Diags[0].Message; got != test.want {
				t.Fatalf("diagnostic is %q, expected %q", got, test.want)
			}
		})
	}
}
