package sqlmongo

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Date literals are accepted in these layouts. The layout is picked by the
// length of the literal.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// pseudoFunctions are the function-like literals: a name followed by a
// single string argument in parentheses.
var pseudoFunctions = map[string]func(p *parser, arg Token) (Value, error){
	"Date": resolveDate,
	"Id":   resolveID,
}

// readValue reads a literal. Bare paths are read as field references only
// when refs is true, which is the case for the right side of a join
// condition.
func readValue(p *parser, refs bool) (Value, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case String:
		p.next()
		return Str(tok.Unquoted()), nil

	case Number:
		p.next()
		return parseNumber(tok, false)

	case Boolean:
		p.next()
		return Bool(tok.Text == "true"), nil

	case Symbol:
		if tok.Text != "-" {
			return nil, expected("value", tok)
		}
		p.next()
		num, err := p.next()
		if err != nil {
			return nil, err
		}
		if num.Kind != Number {
			return nil, expected("number after `-`", num)
		}
		return parseNumber(num, true)

	case Identifier:
		if fn, ok := pseudoFunctions[tok.Text]; ok {
			paren, err := p.t.Peek(1)
			if err != nil {
				return nil, err
			}
			if paren.is(Symbol, "(") {
				return readCall(p, fn)
			}
		}
		if !refs {
			return nil, syntaxErrorf(tok, "field reference %s is only allowed in a join condition", tok.Text)
		}
		path, _, err := readPath(p)
		if err != nil {
			return nil, err
		}
		return FieldRef(path), nil

	default:
		return nil, expected("value", tok)
	}
}

func parseNumber(tok Token, negative bool) (Value, error) {
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return nil, syntaxErrorf(tok, "invalid number %s", tok.Text)
	}
	if negative {
		f = -f
	}
	return Num(f), nil
}

// readCall reads "name ( string )" and passes the string token to fn.
func readCall(p *parser, fn func(p *parser, arg Token) (Value, error)) (Value, error) {
	name, err := p.next()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Symbol, "("); err != nil {
		return nil, err
	}
	arg, err := p.next()
	if err != nil {
		return nil, err
	}
	if arg.Kind != String {
		return nil, expected(fmt.Sprintf("string argument of %s", name.Text), arg)
	}
	if _, err := p.expect(Symbol, ")"); err != nil {
		return nil, err
	}
	return fn(p, arg)
}

func resolveDate(p *parser, arg Token) (Value, error) {
	s := arg.Unquoted()
	for _, layout := range dateLayouts {
		if len(layout) != len(s) {
			continue
		}
		t, err := time.ParseInLocation(layout, s, p.loc)
		if err != nil {
			return nil, &SemanticError{Msg: fmt.Sprintf("invalid date %q: %v", s, err), Line: arg.Line, Col: arg.Col}
		}
		return Date(t), nil
	}
	return nil, &SemanticError{Msg: fmt.Sprintf("unsupported date format %q, use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s), Line: arg.Line, Col: arg.Col}
}

func resolveID(p *parser, arg Token) (Value, error) {
	s := arg.Unquoted()
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, &SemanticError{Msg: fmt.Sprintf("invalid id %q: %v", s, err), Line: arg.Line, Col: arg.Col}
	}
	return ID(id), nil
}
