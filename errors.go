package sqlmongo

import "fmt"

// LexicalError is returned by the tokenizer for unterminated strings and
// comments and for characters outside the configured vocabulary.
type LexicalError struct {
	Token Token
	Msg   string
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Token.Line, e.Token.Col, e.Msg)
}

// SyntaxError reports a token that doesn't fit the grammar at its position.
type SyntaxError struct {
	Expected string
	Found    Token
	Msg      string
}

func (e *SyntaxError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("expected %s, got %s", e.Expected, e.Found.describe())
	}
	return fmt.Sprintf("line %d col %d: %s", e.Found.Line, e.Found.Col, msg)
}

func expected(what string, found Token) *SyntaxError {
	return &SyntaxError{Expected: what, Found: found}
}

func syntaxErrorf(found Token, format string, args ...any) *SyntaxError {
	return &SyntaxError{Found: found, Msg: fmt.Sprintf(format, args...)}
}

// SemanticError is a well-formed construct with a meaning that can't be
// resolved: a bad date or identifier literal, or a field path that walks
// through a scalar. Line is zero when the error isn't tied to query text.
type SemanticError struct {
	Msg  string
	Line int
	Col  int
}

func (e *SemanticError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// StoreError wraps a failure of the document store. Collection is empty
// for operations on the whole database.
type StoreError struct {
	Op         string
	Database   string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	switch {
	case e.Collection != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	case e.Database != "":
		return fmt.Sprintf("%s database %s: %v", e.Op, e.Database, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
