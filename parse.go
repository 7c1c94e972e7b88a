package sqlmongo

import (
	"strconv"
	"time"
)

// vocabulary is the token configuration of the query language.
var vocabulary = TokenizerConfig{
	Keywords:      []string{"select", "from", "join", "as", "on", "and", "where", "order", "by", "asc", "desc", "limit"},
	Booleans:      []string{"true", "false"},
	SingleSymbols: "()[]{},.*;:-",
	MultiSymbols:  "=<>!",
}

// ParseOption configures Parse.
type ParseOption func(*parser)

// WithLocation sets the time zone of Date literals. The default is
// time.Local.
func WithLocation(loc *time.Location) ParseOption {
	return func(p *parser) {
		p.loc = loc
	}
}

// WithTokenListener registers a function that sees every token of the query,
// comments included.
func WithTokenListener(f func(Token)) ParseOption {
	return func(p *parser) {
		p.onToken = f
	}
}

// parser is the state of one parse. Clause readers take it and return what
// they read; the plan is put together from the clauses at the end.
type parser struct {
	t       *Tokenizer
	loc     *time.Location
	onToken func(Token)
}

type tableRef struct {
	Name  string
	Alias string
	tok   Token
}

type joinClause struct {
	table      tableRef
	conditions []Condition
}

// Parse parses a query and returns its plan.
func Parse(query string, opts ...ParseOption) (*QueryPlan, error) {
	p := &parser{loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	p.t = NewTokenizer(query, vocabulary)
	if p.onToken != nil {
		p.t.OnToken(p.onToken)
	}

	fields, err := readSelect(p)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Keyword, "from"); err != nil {
		return nil, err
	}
	from, err := readTable(p)
	if err != nil {
		return nil, err
	}
	join, err := readJoin(p, from)
	if err != nil {
		return nil, err
	}

	// With a join, main collection paths may be qualified.
	strip := ""
	if join != nil {
		strip = from.Alias
	}

	var where []Condition
	ok, err := p.eat(Keyword, "where")
	if err != nil {
		return nil, err
	}
	if ok {
		where, err = readConditions(p, strip, "")
		if err != nil {
			return nil, err
		}
	}
	order, err := readOrder(p, strip)
	if err != nil {
		return nil, err
	}
	plan := buildPlan(fields, from, join, where, order)
	if err := readLimit(p, plan); err != nil {
		return nil, err
	}

	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != End {
		return nil, syntaxErrorf(tok, "unexpected token: %s", tok)
	}
	return plan, nil
}

func (p *parser) peek() (Token, error) {
	return p.t.Peek(0)
}

func (p *parser) next() (Token, error) {
	return p.t.Advance()
}

// eat consumes the current token if it matches.
func (p *parser) eat(kind TokenKind, text string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if !tok.is(kind, text) {
		return false, nil
	}
	_, err = p.next()
	return true, err
}

// expect consumes the current token and fails if it doesn't match. An empty
// text matches any token of the kind.
func (p *parser) expect(kind TokenKind, text string) (Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind || (text != "" && tok.Text != text) {
		if text == "" {
			return tok, expected(kind.String(), tok)
		}
		return tok, expected("`"+text+"`", tok)
	}
	return tok, nil
}

// readPath reads IDENT ("." IDENT)*. The first token is returned for error
// positions.
func readPath(p *parser) (Path, Token, error) {
	first, err := p.expect(Identifier, "")
	if err != nil {
		return nil, first, err
	}
	path := Path{first.Text}
	for {
		ok, err := p.eat(Symbol, ".")
		if err != nil {
			return nil, first, err
		}
		if !ok {
			return path, first, nil
		}
		seg, err := p.expect(Identifier, "")
		if err != nil {
			return nil, first, err
		}
		path = append(path, seg.Text)
	}
}

// readSelect reads the select list. The result is nil for "select *". A
// repeated alias replaces the earlier entry in its place.
func readSelect(p *parser) ([]SelectedField, error) {
	if _, err := p.expect(Keyword, "select"); err != nil {
		return nil, err
	}
	star, err := p.eat(Symbol, "*")
	if err != nil || star {
		return nil, err
	}
	var fields []SelectedField
	for {
		path, _, err := readPath(p)
		if err != nil {
			return nil, err
		}
		alias := path.String()
		ok, err := p.eat(Keyword, "as")
		if err != nil {
			return nil, err
		}
		if ok {
			tok, err := p.expect(Identifier, "")
			if err != nil {
				return nil, err
			}
			alias = tok.Text
		}
		fields = putField(fields, SelectedField{alias, path})

		ok, err = p.eat(Symbol, ",")
		if err != nil {
			return nil, err
		}
		if !ok {
			return fields, nil
		}
	}
}

func putField(fields []SelectedField, f SelectedField) []SelectedField {
	for i := range fields {
		if fields[i].Alias == f.Alias {
			fields[i] = f
			return fields
		}
	}
	return append(fields, f)
}

// readTable reads "name [as alias]".
func readTable(p *parser) (tableRef, error) {
	name, err := p.expect(Identifier, "")
	if err != nil {
		return tableRef{}, err
	}
	t := tableRef{Name: name.Text, Alias: name.Text, tok: name}
	ok, err := p.eat(Keyword, "as")
	if err != nil {
		return t, err
	}
	if ok {
		alias, err := p.expect(Identifier, "")
		if err != nil {
			return t, err
		}
		t.Alias = alias.Text
	}
	return t, nil
}

// readJoin reads an optional join clause. It returns nil if there's none.
func readJoin(p *parser, outer tableRef) (*joinClause, error) {
	ok, err := p.eat(Keyword, "join")
	if err != nil || !ok {
		return nil, err
	}
	table, err := readTable(p)
	if err != nil {
		return nil, err
	}
	if table.Alias == outer.Alias {
		return nil, syntaxErrorf(table.tok, "alias %s is already used by %s", table.Alias, outer.Name)
	}
	if _, err := p.expect(Keyword, "on"); err != nil {
		return nil, err
	}
	conditions, err := readConditions(p, table.Alias, outer.Alias)
	if err != nil {
		return nil, err
	}
	return &joinClause{table, conditions}, nil
}

// readConditions reads "cond (and cond)*". Paths on the left have the local
// alias stripped. If outer is set, values may be field references, which
// must point into the outer collection.
func readConditions(p *parser, local, outer string) ([]Condition, error) {
	var conditions []Condition
	for {
		c, err := readCondition(p, local, outer)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
		ok, err := p.eat(Keyword, "and")
		if err != nil {
			return nil, err
		}
		if !ok {
			return conditions, nil
		}
	}
}

func readCondition(p *parser, local, outer string) (Condition, error) {
	path, first, err := readPath(p)
	if err != nil {
		return Condition{}, err
	}
	if outer != "" && len(path) > 1 && path.Head() == outer {
		return Condition{}, syntaxErrorf(first, "left side of a join condition must be a field of %s, got %s", local, path)
	}
	if local != "" {
		path, _ = path.trimAlias(local)
	}

	optok, err := p.next()
	if err != nil {
		return Condition{}, err
	}
	if optok.Kind != Symbol {
		return Condition{}, expected("comparison operator", optok)
	}
	op, ok := operators[optok.Text]
	if !ok {
		return Condition{}, syntaxErrorf(optok, "unsupported operator %s", optok.Text)
	}

	valtok, err := p.peek()
	if err != nil {
		return Condition{}, err
	}
	value, err := readValue(p, outer != "")
	if err != nil {
		return Condition{}, err
	}
	if ref, ok := value.(FieldRef); ok {
		if _, ok := Path(ref).trimAlias(outer); !ok {
			return Condition{}, syntaxErrorf(valtok, "field reference %s must be a field of %s", Path(ref), outer)
		}
	}
	return Condition{path, op, value}, nil
}

// readOrder reads an optional order clause.
func readOrder(p *parser, strip string) ([]SortField, error) {
	ok, err := p.eat(Keyword, "order")
	if err != nil || !ok {
		return nil, err
	}
	if _, err := p.expect(Keyword, "by"); err != nil {
		return nil, err
	}
	var order []SortField
	for {
		path, _, err := readPath(p)
		if err != nil {
			return nil, err
		}
		if strip != "" {
			path, _ = path.trimAlias(strip)
		}
		desc, err := p.eat(Keyword, "desc")
		if err != nil {
			return nil, err
		}
		if !desc {
			if _, err := p.eat(Keyword, "asc"); err != nil {
				return nil, err
			}
		}
		order = append(order, SortField{path, desc})

		ok, err := p.eat(Symbol, ",")
		if err != nil {
			return nil, err
		}
		if !ok {
			return order, nil
		}
	}
}

// readLimit reads an optional limit clause into the plan.
func readLimit(p *parser, plan *QueryPlan) error {
	ok, err := p.eat(Keyword, "limit")
	if err != nil || !ok {
		return err
	}
	n, err := p.next()
	if err != nil {
		return err
	}
	if n.Kind != Number {
		return expected("number after limit", n)
	}
	val, err := strconv.Atoi(n.Text)
	if err != nil {
		return syntaxErrorf(n, "limit must be an integer, got %s", n.Text)
	}
	if val < 1 {
		return syntaxErrorf(n, "limit must be positive, got %s", n.Text)
	}
	plan.Limit.Set = true
	plan.Limit.Value = val
	return nil
}

// buildPlan puts the clauses together and derives the projections.
func buildPlan(fields []SelectedField, from tableRef, join *joinClause, where []Condition, order []SortField) *QueryPlan {
	plan := &QueryPlan{
		Main: CollectionInfo{
			Alias:      from.Alias,
			Name:       from.Name,
			Conditions: where,
		},
		Fields: fields,
		Sort:   order,
	}
	if join != nil {
		plan.Join = &CollectionInfo{
			Alias:      join.table.Alias,
			Name:       join.table.Name,
			Conditions: join.conditions,
		}
	}
	if plan.AllFields() {
		return plan
	}

	for _, f := range fields {
		c, local := plan.owner(f.Path)
		c.Projection = c.Projection.cover(local.String())
	}
	for _, c := range plan.collections() {
		if !c.Projection.touches("_id") {
			c.Projection = c.Projection.set("_id", false)
		}
	}
	if plan.Join != nil {
		for _, ref := range plan.Join.References() {
			local, _ := ref.trimAlias(plan.Main.Alias)
			plan.Main.Projection = plan.Main.Projection.cover(local.String())
		}
	}
	return plan
}

// owner returns the collection a selected path belongs to and the path
// relative to that collection.
func (q *QueryPlan) owner(path Path) (*CollectionInfo, Path) {
	if q.Join == nil {
		return &q.Main, path
	}
	if local, ok := path.trimAlias(q.Join.Alias); ok {
		return q.Join, local
	}
	local, _ := path.trimAlias(q.Main.Alias)
	return &q.Main, local
}

func (q *QueryPlan) collections() []*CollectionInfo {
	if q.Join == nil {
		return []*CollectionInfo{&q.Main}
	}
	return []*CollectionInfo{&q.Main, q.Join}
}
