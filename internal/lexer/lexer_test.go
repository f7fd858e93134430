package lexer

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/escaco95/vjassp/internal/diagnostics"
	"github.com/escaco95/vjassp/internal/lexer/token"
)

type tokenKindTest struct {
	lexeme string
	kind   token.Kind
}

func TestTokenKinds(t *testing.T) {
	filename := "test.jp"

	tests := []*tokenKindTest{
		{"library", token.LIBRARY},
		{"system", token.SYSTEM},
		{"scope", token.SCOPE},
		{"content", token.CONTENT},
		{"global", token.GLOBAL},
		{"api", token.API},
		{"init", token.INIT},
		{"import", token.IMPORT},
		{"when", token.WHEN},
		{"uses", token.USES},
		{"optional", token.OPTIONAL},
		{"if", token.IF},
		{"elseif", token.ELSEIF},
		{"else", token.ELSE},
		{"until", token.UNTIL},
		{"while", token.WHILE},
		{"loop", token.LOOP},
		{"break", token.BREAK},
		{"exitwhen", token.EXITWHEN},
		{"return", token.RETURN},
		{"true", token.TRUE},
		{"false", token.FALSE},
		{"null", token.NULL},
		{"function", token.FUNCTION},
		{"native", token.NATIVE},
		{"and", token.AND},
		{"or", token.OR},
		{"not", token.NOT},
		{"extends", token.EXTENDS},
		{"alias", token.ALIAS},
		{"type", token.TYPE},
		{"call", token.CALL},
		{"set", token.SET},
		{"debug", token.DEBUG},

		{"(", token.OPEN_PAREN},
		{")", token.CLOSE_PAREN},
		{"[", token.OPEN_BRACKET},
		{"]", token.CLOSE_BRACKET},
		{"{", token.OPEN_CURLY},
		{"}", token.CLOSE_CURLY},
		{",", token.COMMA},
		{".", token.DOT},
		{":", token.COLON},
		{";", token.SEMICOLON},
		{"*", token.STAR},
		{"~", token.TILDE},
		{"=", token.EQUAL},
		{"==", token.EQUAL_EQUAL},
		{"!", token.BANG},
		{"!=", token.BANG_EQUAL},
		{">", token.GREATER},
		{">=", token.GREATER_EQ},
		{"<", token.LESS},
		{"<=", token.LESS_EQ},
		{"+", token.PLUS},
		{"-", token.MINUS},
		{"/", token.SLASH},
		{"%", token.PERCENT},
		{"++", token.PLUS_PLUS},
		{"--", token.MINUS_MINUS},
		{"+=", token.PLUS_EQUAL},
		{"-=", token.MINUS_EQUAL},
		{"*=", token.STAR_EQUAL},
		{"/=", token.SLASH_EQUAL},
		{"->", token.ARROW},
		{"=>", token.FAT_ARROW},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestTokenKind('%q')", test.lexeme), func(t *testing.T) {
			collector := diagnostics.New()

			src := []byte(test.lexeme)
			lex := New(filename, src, collector)

			tokenResult, err := lex.Tokenize()
			if err != nil {
				t.Errorf("unexpected error '%v'", err)
			}

			if len(tokenResult) != 3 {
				t.Fatalf("expected len(tokenResult) == 3, but got %d", len(tokenResult))
			}
			if tokenResult[0].Kind != test.kind {
				t.Errorf("expected token to be %q, but got %q", test.kind, tokenResult[0].Kind)
			}
			if tokenResult[1].Kind != token.NEWLINE {
				t.Errorf("expected second token to be NEWLINE, but got %q", tokenResult[1].Kind)
			}
			if tokenResult[2].Kind != token.EOF {
				t.Errorf("expected last token to be EOF, but got %q", tokenResult[2].Kind)
			}
		})
	}
}

type tokenPosTest struct {
	input     string
	positions []token.Pos
}

func TestTokenPos(t *testing.T) {
	filename := "test.jp"

	tests := []*tokenPosTest{
		{";", []token.Pos{
			{Filename: "test.jp", Line: 1, Column: 1},  // ;
			{Filename: "test.jp", Line: 1, Column: 2},  // newline
			{Filename: "test.jp", Line: 1, Column: 2}}, // eof
		},
		{";\n;", []token.Pos{
			{Filename: "test.jp", Line: 1, Column: 1},  // ;
			{Filename: "test.jp", Line: 1, Column: 2},  // newline
			{Filename: "test.jp", Line: 2, Column: 1},  // ;
			{Filename: "test.jp", Line: 2, Column: 2},  // newline
			{Filename: "test.jp", Line: 2, Column: 2}}, // eof
		},
		{"init\nhello world\n;", []token.Pos{
			{Filename: "test.jp", Line: 1, Column: 1},  // init
			{Filename: "test.jp", Line: 1, Column: 5},  // newline
			{Filename: "test.jp", Line: 2, Column: 1},  // hello
			{Filename: "test.jp", Line: 2, Column: 7},  // world
			{Filename: "test.jp", Line: 2, Column: 12}, // newline
			{Filename: "test.jp", Line: 3, Column: 1},  // ;
			{Filename: "test.jp", Line: 3, Column: 2},  // newline
			{Filename: "test.jp", Line: 3, Column: 2}}, // eof
		},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestTokenPos(%q)", test.input), func(t *testing.T) {
			collector := diagnostics.New()

			src := []byte(test.input)
			lex := New(filename, src, collector)

			tokenResult, err := lex.Tokenize()
			if err != nil {
				t.Errorf("unexpected error '%v'", err)
			}

			if len(tokenResult) != len(test.positions) {
				t.Fatalf(
					"expected %d token(s), but got %d",
					len(test.positions),
					len(tokenResult),
				)
			}

			for i, expectedPos := range test.positions {
				actualPos := tokenResult[i].Pos
				if expectedPos != actualPos {
					t.Errorf(
						"expected position of '%s' to be the same, expected %q, but got %q",
						tokenResult[i].Kind,
						expectedPos,
						actualPos,
					)
				}
			}
		})
	}
}

type indentationTest struct {
	input string
	kinds []token.Kind
}

func TestIndentation(t *testing.T) {
	filename := "test.jp"

	tests := []*indentationTest{
		{
			input: "library A:\n    init:\n        i = 1\n",
			kinds: []token.Kind{
				token.LIBRARY, token.ID, token.COLON, token.NEWLINE,
				token.INDENT, token.INIT, token.COLON, token.NEWLINE,
				token.INDENT, token.ID, token.EQUAL, token.INT_LIT, token.NEWLINE,
				token.DEDENT, token.DEDENT, token.EOF,
			},
		},
		{
			// blank and comment-only lines carry no layout meaning
			input: "a\n\n# note\nb\n",
			kinds: []token.Kind{
				token.ID, token.NEWLINE,
				token.ID, token.NEWLINE,
				token.EOF,
			},
		},
		{
			// dedent across two levels at once
			input: "a:\n    b:\n        c\nd\n",
			kinds: []token.Kind{
				token.ID, token.COLON, token.NEWLINE,
				token.INDENT, token.ID, token.COLON, token.NEWLINE,
				token.INDENT, token.ID, token.NEWLINE,
				token.DEDENT, token.DEDENT, token.ID, token.NEWLINE,
				token.EOF,
			},
		},
		{
			// file ending inside a nested block drains every open level
			input: "a:\n    b:\n        c",
			kinds: []token.Kind{
				token.ID, token.COLON, token.NEWLINE,
				token.INDENT, token.ID, token.COLON, token.NEWLINE,
				token.INDENT, token.ID, token.NEWLINE,
				token.DEDENT, token.DEDENT, token.EOF,
			},
		},
		{
			// documentation strings vanish from the stream entirely
			input: "\"\"\"tick tock\ngoes the clock\"\"\"\na\n",
			kinds: []token.Kind{
				token.ID, token.NEWLINE,
				token.EOF,
			},
		},
		{
			// trailing comment still closes the logical line
			input: "a # trailing\n",
			kinds: []token.Kind{
				token.ID, token.NEWLINE,
				token.EOF,
			},
		},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestIndentation(%q)", test.input), func(t *testing.T) {
			collector := diagnostics.New()

			src := []byte(test.input)
			lex := New(filename, src, collector)

			tokenResult, err := lex.Tokenize()
			if err != nil {
				t.Fatalf("unexpected error '%v'", err)
			}

			kinds := make([]token.Kind, 0, len(tokenResult))
			for _, tok := range tokenResult {
				kinds = append(kinds, tok.Kind)
			}

			if !reflect.DeepEqual(test.kinds, kinds) {
				t.Errorf("\nexpected kinds: %v\ngot kinds: %v\n", test.kinds, kinds)
			}

			indents, dedents := 0, 0
			for _, kind := range kinds {
				if kind == token.INDENT {
					indents++
				}
				if kind == token.DEDENT {
					dedents++
				}
			}
			if indents != dedents {
				t.Errorf("expected INDENT and DEDENT counts to balance, but got %d and %d", indents, dedents)
			}
		})
	}
}

type tokenLiteralTest struct {
	input  string
	kind   token.Kind
	lexeme string
}

func TestIsLiteral(t *testing.T) {
	filename := "test.jp"

	tests := []*tokenLiteralTest{
		{"1", token.INT_LIT, "1"},
		{"123456789", token.INT_LIT, "123456789"},
		{"0x1F", token.INT_LIT, "0x1F"},
		{"0XABC", token.INT_LIT, "0XABC"},
		{"'hfoo'", token.INT_LIT, "'hfoo'"},
		{"3.14", token.REAL_LIT, "3.14"},
		{".5", token.REAL_LIT, ".5"},
		{"2.", token.REAL_LIT, "2."},
		{"\"Hello world\"", token.STRING_LIT, "Hello world"},
		{"\"a\\nb\"", token.STRING_LIT, "a\\nb"},
		{"\"\"", token.STRING_LIT, ""},
		{"f\"x {n}\"", token.FSTRING_LIT, "x {n}"},
		{"true", token.TRUE, "true"},
		{"false", token.FALSE, "false"},
		{"null", token.NULL, "null"},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestIsLiteral('%q')", test.input), func(t *testing.T) {
			collector := diagnostics.New()

			src := []byte(test.input)
			lex := New(filename, src, collector)
			tokenResult, err := lex.Tokenize()
			if err != nil {
				t.Fatalf("unexpected error '%v'", err)
			}

			if len(tokenResult) != 3 {
				t.Fatalf("expected a single token, but got %d", len(tokenResult))
			}
			if tokenResult[0].Kind != test.kind {
				t.Errorf("expected to be a %q, but got %q", test.kind, tokenResult[0].Kind)
			}
			if string(tokenResult[0].Lexeme) != test.lexeme {
				t.Errorf("expected lexeme %q, but got %q", test.lexeme, string(tokenResult[0].Lexeme))
			}
		})
	}
}

type lexicalErrorTest struct {
	input string
	diags []diagnostics.Diag
}

func TestLexicalErrors(t *testing.T) {
	filename := "test.jp"

	tests := []lexicalErrorTest{
		{
			input: "?",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: invalid character ?",
				},
			},
		},
		{
			input: "\"Unterminated string literal here",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: unterminated string literal",
				},
			},
		},
		{
			input: "\"",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: unterminated string literal",
				},
			},
		},
		{
			input: "\"a\\qb\"",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:4: invalid escape sequence \\q",
				},
			},
		},
		{
			input: "'hfoo",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: unterminated rawcode literal",
				},
			},
		},
		{
			input: "0x",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: malformed hex literal",
				},
			},
		},
		{
			input: "1.2.3",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: malformed real literal",
				},
			},
		},
		{
			input: "a:\n    b\n  c\n",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:3:3: inconsistent dedent",
				},
			},
		},
		{
			input: "\"\"\"never closed\n",
			diags: []diagnostics.Diag{
				{
					Message: "test.jp:1:1: unterminated multi-line string",
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestLexicalErrors('%s')", test.input), func(t *testing.T) {
			collector := diagnostics.New()

			src := []byte(test.input)
			lex := New(filename, src, collector)
			_, err := lex.Tokenize()
			if err == nil {
				t.Fatal("expected to have lexical errors, but got nothing")
			}

			if len(test.diags) != len(lex.Collector.Diags) {
				t.Fatalf(
					"expected to have %d diag(s), but got %d",
					len(test.diags),
					len(lex.Collector.Diags),
				)
			}

			if !reflect.DeepEqual(test.diags, lex.Collector.Diags) {
				t.Fatalf("\nexpected diags: %v\ngot diags: %v\n", test.diags, lex.Collector)
			}
		})
	}
}
