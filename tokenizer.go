package sqlmongo

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind classifies a token.
type TokenKind int

const (
	Keyword TokenKind = iota
	Identifier
	String
	Number
	Boolean
	Symbol
	Comment
	Start
	End
)

func (k TokenKind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case Identifier:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Symbol:
		return "symbol"
	case Comment:
		return "comment"
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// Token is a piece of the input. Text is the raw source text, so strings
// keep their quotes.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int // offset in characters
	Line  int // 1-based
	Col   int // 1-based
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) String() string {
	return fmt.Sprintf("[%s %s]", t.Kind, t.Text)
}

func (t Token) describe() string {
	if t.Kind == End {
		return "end of query"
	}
	return fmt.Sprintf("%s `%s`", t.Kind, strings.ReplaceAll(t.Text, "\n", `\n`))
}

// Unquoted returns the content of a string token with the quotes removed and
// backslash escapes resolved.
func (t Token) Unquoted() string {
	r := []rune(t.Text)
	if len(r) < 2 {
		return ""
	}
	s := strings.Builder{}
	inner := r[1 : len(r)-1]
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		s.WriteRune(inner[i])
	}
	return s.String()
}

// Line is the group of tokens that came from one line of input.
type Line struct {
	Indent int
	Tokens []Token
}

// TokenizerConfig is the vocabulary of a tokenizer.
type TokenizerConfig struct {
	Keywords      []string
	Booleans      []string
	SingleSymbols string
	MultiSymbols  string
}

// Tokenizer produces tokens on demand. Tokens that have been read stay in a
// buffer, so any token ahead of the read cursor can be peeked.
type Tokenizer struct {
	b        *Parsebuf
	keywords map[string]bool
	booleans map[string]bool
	single   string
	multi    string
	tokens   []Token
	next     int
	lines    []Line
	err      error
	onToken  func(Token)
}

// NewTokenizer returns a tokenizer over input.
func NewTokenizer(input string, cfg TokenizerConfig) *Tokenizer {
	t := &Tokenizer{
		b:        NewParsebuf(input),
		keywords: map[string]bool{},
		booleans: map[string]bool{},
		single:   cfg.SingleSymbols,
		multi:    cfg.MultiSymbols,
		lines:    []Line{{}},
	}
	for _, k := range cfg.Keywords {
		t.keywords[k] = true
	}
	for _, k := range cfg.Booleans {
		t.booleans[k] = true
	}
	return t
}

// OnToken registers a function that is called with every token as it is
// scanned, comments included.
func (tr *Tokenizer) OnToken(f func(Token)) {
	tr.onToken = f
}

// Peek returns the token k positions ahead of the read cursor without
// consuming anything. Past the end of input it returns the End token.
func (tr *Tokenizer) Peek(k int) (Token, error) {
	for len(tr.tokens) <= tr.next+k && !tr.ended() {
		if err := tr.read(); err != nil {
			return Token{}, err
		}
	}
	if tr.err != nil {
		return Token{}, tr.err
	}
	i := tr.next + k
	if i >= len(tr.tokens) {
		i = len(tr.tokens) - 1
	}
	return tr.tokens[i], nil
}

// Advance consumes and returns the current token. The cursor never moves
// past the End token.
func (tr *Tokenizer) Advance() (Token, error) {
	tok, err := tr.Peek(0)
	if err != nil {
		return tok, err
	}
	if tok.Kind != End {
		tr.next++
	}
	return tok, nil
}

// Lines returns the lines scanned so far.
func (tr *Tokenizer) Lines() []Line {
	return tr.lines
}

func (tr *Tokenizer) ended() bool {
	return tr.err != nil || (len(tr.tokens) > 0 && tr.tokens[len(tr.tokens)-1].Kind == End)
}

func (tr *Tokenizer) read() error {
	tr.space()
	tok, err := tr.scan()
	if tr.onToken != nil && err == nil {
		tr.onToken(tok)
	}
	if err != nil {
		tr.err = err
		return err
	}
	if tok.Kind != Comment {
		tr.add(tok)
	}
	return nil
}

func (tr *Tokenizer) add(tok Token) {
	for len(tr.lines) < tok.Line {
		tr.lines = append(tr.lines, Line{})
	}
	l := &tr.lines[tok.Line-1]
	if len(l.Tokens) == 0 {
		l.Indent = tr.indent(tok)
	}
	l.Tokens = append(l.Tokens, tok)
	tr.tokens = append(tr.tokens, tok)
}

// indent returns the width of the whitespace before the token if nothing
// else precedes it on its line.
func (tr *Tokenizer) indent(tok Token) int {
	prefix := tr.b.Slice(tok.Start-tok.Col+1, tok.Start)
	if strings.TrimLeft(prefix, " \t") != "" {
		return 0
	}
	return len([]rune(prefix))
}

func (tr *Tokenizer) space() {
	tr.b.Set(unicode.IsSpace)
}

func (tr *Tokenizer) scan() (Token, error) {
	b := tr.b
	tok := Token{Start: b.Pos(), Line: b.Line(), Col: b.Col()}
	fail := func(msg string) (Token, error) {
		tok.Text = b.Slice(tok.Start, b.Pos())
		return tok, &LexicalError{Token: tok, Msg: msg}
	}

	c := b.Peek()
	switch {
	case !b.More():
		tok.Kind = End
		return tok, nil

	case isIdentStart(c):
		tok.Text = b.Set(isIdentPart)
		switch {
		case tr.keywords[tok.Text]:
			tok.Kind = Keyword
		case tr.booleans[tok.Text]:
			tok.Kind = Boolean
		default:
			tok.Kind = Identifier
		}
		return tok, nil

	case c == '"' || c == '\'':
		tok.Kind = String
		quote := b.Get()
		for b.More() && b.Peek() != quote && b.Peek() != '\n' {
			if b.Get() == '\\' && b.More() && b.Peek() != '\n' {
				b.Get()
			}
		}
		if b.Peek() != quote {
			return fail(fmt.Sprintf("string literal is not terminated with %c", quote))
		}
		b.Get()
		tok.Text = b.Slice(tok.Start, b.Pos())
		return tok, nil

	case isDigit(c):
		tok.Kind = Number
		b.Set(isDigit)
		if b.Peek() == '.' {
			b.Get()
			b.Set(isDigit)
		}
		tok.Text = b.Slice(tok.Start, b.Pos())
		return tok, nil

	case c == '/' && b.PeekAt(1) == '/':
		tok.Kind = Comment
		tok.Text = b.Set(func(r rune) bool { return r != '\n' })
		return tok, nil

	case c == '/' && b.PeekAt(1) == '*':
		tok.Kind = Comment
		b.Get()
		b.Get()
		for b.More() && !(b.Peek() == '*' && b.PeekAt(1) == '/') {
			b.Get()
		}
		if !b.More() {
			return fail("block comment is not terminated with */")
		}
		b.Get()
		b.Get()
		tok.Text = b.Slice(tok.Start, b.Pos())
		return tok, nil

	case strings.ContainsRune(tr.single, c):
		tok.Kind = Symbol
		b.Get()
		tok.Text = string(c)
		return tok, nil

	case strings.ContainsRune(tr.multi, c):
		tok.Kind = Symbol
		tok.Text = b.Set(func(r rune) bool { return strings.ContainsRune(tr.multi, r) })
		return tok, nil

	default:
		b.Get()
		return fail(fmt.Sprintf("unexpected character `%c`", c))
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
