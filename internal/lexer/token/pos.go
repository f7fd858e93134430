package token

import "fmt"

type Pos struct {
	Filename     string
	Line, Column int
}

func NewPosition(filename string, line, column int) Pos {
	return Pos{Filename: filename, Line: line, Column: column}
}

// Move advances past character, starting a fresh column after a newline.
func (pos *Pos) Move(character byte) {
	if character == '\n' {
		pos.Line++
		pos.Column = 1
	} else {
		pos.Column++
	}
}

func (pos Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Column)
}
