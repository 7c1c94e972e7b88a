package sqlmongo

// Parsebuf is a string container with utility methods for writing hand-crafted
// scanners. It tracks the line and column of the read position.
type Parsebuf struct {
	pos  int
	str  []rune
	line int
	col  int
}

// NewParsebuf returns a new parsebuf positioned at line 1, column 1.
func NewParsebuf(s string) *Parsebuf {
	return &Parsebuf{0, []rune(s), 1, 1}
}

// More returns true if there are more characters to read.
func (b *Parsebuf) More() bool {
	return b.pos < len(b.str)
}

// Get reads one character. Returns 0 if there's no more characters.
func (b *Parsebuf) Get() rune {
	if !b.More() {
		return 0
	}
	r := b.str[b.pos]
	b.pos++
	if r == '\n' {
		b.line++
		b.col = 1
	} else {
		b.col++
	}
	return r
}

// Peek returns what Get would return, without reading it.
func (b *Parsebuf) Peek() rune {
	return b.PeekAt(0)
}

// PeekAt returns the character k positions ahead of the read position, or 0.
func (b *Parsebuf) PeekAt(k int) rune {
	if b.pos+k >= len(b.str) {
		return 0
	}
	return b.str[b.pos+k]
}

// Set reads a sequence of characters accepted by allowed.
func (b *Parsebuf) Set(allowed func(rune) bool) string {
	start := b.pos
	for b.More() && allowed(b.Peek()) {
		b.Get()
	}
	return string(b.str[start:b.pos])
}

// Pos returns the offset of the read position, in characters.
func (b *Parsebuf) Pos() int {
	return b.pos
}

// Line returns the 1-based line of the read position.
func (b *Parsebuf) Line() int {
	return b.line
}

// Col returns the 1-based column of the read position.
func (b *Parsebuf) Col() int {
	return b.col
}

// Slice returns the characters between two offsets.
func (b *Parsebuf) Slice(from, to int) string {
	if to > len(b.str) {
		to = len(b.str)
	}
	return string(b.str[from:to])
}
