package token

import "log"

type Kind int

const (
	// EOF
	EOF Kind = iota
	INVALID

	// Layout. The lexer synthesizes these from physical indentation so the
	// parser stays ordinary recursive descent.
	NEWLINE
	INDENT
	DEDENT

	// Identifier
	ID

	// Literals
	INT_LIT
	REAL_LIT
	STRING_LIT
	FSTRING_LIT

	// Keywords
	LIBRARY
	SYSTEM
	SCOPE
	CONTENT
	GLOBAL
	API
	INIT
	IMPORT
	WHEN
	USES
	OPTIONAL
	IF
	ELSEIF
	ELSE
	UNTIL
	WHILE
	LOOP
	BREAK
	EXITWHEN
	RETURN
	TRUE
	FALSE
	NULL
	FUNCTION
	NATIVE
	AND
	OR
	NOT
	EXTENDS
	ALIAS
	TYPE
	CALL
	SET
	DEBUG

	// (
	OPEN_PAREN
	// )
	CLOSE_PAREN

	// [
	OPEN_BRACKET
	// ]
	CLOSE_BRACKET

	// {
	OPEN_CURLY
	// }
	CLOSE_CURLY

	// ,
	COMMA
	// .
	DOT
	// :
	COLON
	// ;
	SEMICOLON

	// *
	STAR
	// ~
	TILDE

	// =
	EQUAL
	// ==
	EQUAL_EQUAL
	// !
	BANG
	// !=
	BANG_EQUAL

	// >
	GREATER
	// >=
	GREATER_EQ
	// <
	LESS
	// <=
	LESS_EQ

	// +
	PLUS
	// -
	MINUS
	// /
	SLASH
	// %
	PERCENT

	// ++
	PLUS_PLUS
	// --
	MINUS_MINUS

	// +=
	PLUS_EQUAL
	// -=
	MINUS_EQUAL
	// *=
	STAR_EQUAL
	// /=
	SLASH_EQUAL

	// ->
	ARROW
	// =>
	FAT_ARROW
)

var KEYWORDS map[string]Kind = map[string]Kind{
	"library":  LIBRARY,
	"system":   SYSTEM,
	"scope":    SCOPE,
	"content":  CONTENT,
	"global":   GLOBAL,
	"api":      API,
	"init":     INIT,
	"import":   IMPORT,
	"when":     WHEN,
	"uses":     USES,
	"optional": OPTIONAL,
	"if":       IF,
	"elseif":   ELSEIF,
	"else":     ELSE,
	"until":    UNTIL,
	"while":    WHILE,
	"loop":     LOOP,
	"break":    BREAK,
	"exitwhen": EXITWHEN,
	"return":   RETURN,
	"true":     TRUE,
	"false":    FALSE,
	"null":     NULL,
	"function": FUNCTION,
	"native":   NATIVE,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"extends":  EXTENDS,
	"alias":    ALIAS,
	"type":     TYPE,
	"call":     CALL,
	"set":      SET,
	"debug":    DEBUG,
}

var LITERAL_KIND map[Kind]bool = map[Kind]bool{
	INT_LIT:     true,
	REAL_LIT:    true,
	STRING_LIT:  true,
	FSTRING_LIT: true,
	TRUE:        true,
	FALSE:       true,
	NULL:        true,
}

// CONTAINER_KIND holds the keywords that open a declaration container.
var CONTAINER_KIND map[Kind]bool = map[Kind]bool{
	LIBRARY: true,
	SYSTEM:  true,
	SCOPE:   true,
	CONTENT: true,
}

func (kind Kind) String() string {
	switch kind {
	case EOF:
		return "end of file"
	case INVALID:
		return "INVALID"
	case NEWLINE:
		return "newline"
	case INDENT:
		return "indent"
	case DEDENT:
		return "dedent"
	case ID:
		return "identifier"
	case INT_LIT:
		return "integer literal"
	case REAL_LIT:
		return "real literal"
	case STRING_LIT:
		return "string literal"
	case FSTRING_LIT:
		return "format string literal"
	case LIBRARY:
		return "library"
	case SYSTEM:
		return "system"
	case SCOPE:
		return "scope"
	case CONTENT:
		return "content"
	case GLOBAL:
		return "global"
	case API:
		return "api"
	case INIT:
		return "init"
	case IMPORT:
		return "import"
	case WHEN:
		return "when"
	case USES:
		return "uses"
	case OPTIONAL:
		return "optional"
	case IF:
		return "if"
	case ELSEIF:
		return "elseif"
	case ELSE:
		return "else"
	case UNTIL:
		return "until"
	case WHILE:
		return "while"
	case LOOP:
		return "loop"
	case BREAK:
		return "break"
	case EXITWHEN:
		return "exitwhen"
	case RETURN:
		return "return"
	case TRUE:
		return "true"
	case FALSE:
		return "false"
	case NULL:
		return "null"
	case FUNCTION:
		return "function"
	case NATIVE:
		return "native"
	case AND:
		return "and"
	case OR:
		return "or"
	case NOT:
		return "not"
	case EXTENDS:
		return "extends"
	case ALIAS:
		return "alias"
	case TYPE:
		return "type"
	case CALL:
		return "call"
	case SET:
		return "set"
	case DEBUG:
		return "debug"
	case OPEN_PAREN:
		return "("
	case CLOSE_PAREN:
		return ")"
	case OPEN_BRACKET:
		return "["
	case CLOSE_BRACKET:
		return "]"
	case OPEN_CURLY:
		return "{"
	case CLOSE_CURLY:
		return "}"
	case COMMA:
		return ","
	case DOT:
		return "."
	case COLON:
		return ":"
	case SEMICOLON:
		return ";"
	case STAR:
		return "*"
	case TILDE:
		return "~"
	case EQUAL:
		return "="
	case EQUAL_EQUAL:
		return "=="
	case BANG:
		return "!"
	case BANG_EQUAL:
		return "!="
	case GREATER:
		return ">"
	case GREATER_EQ:
		return ">="
	case LESS:
		return "<"
	case LESS_EQ:
		return "<="
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case SLASH:
		return "/"
	case PERCENT:
		return "%"
	case PLUS_PLUS:
		return "++"
	case MINUS_MINUS:
		return "--"
	case PLUS_EQUAL:
		return "+="
	case MINUS_EQUAL:
		return "-="
	case STAR_EQUAL:
		return "*="
	case SLASH_EQUAL:
		return "/="
	case ARROW:
		return "->"
	case FAT_ARROW:
		return "=>"
	default:
		log.Fatalf("String() method not defined for the following token kind '%d'", kind)
	}
	return ""
}
