package memstore

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// projection selects fields of documents. A nil projection returns
// documents as they are.
type projection struct {
	include bool
	id      bool
	fields  *node
}

// node is a tree of projected paths. A node without children stands for the
// whole value at its path.
type node struct {
	children map[string]*node
}

func (n *node) add(path []string) {
	for _, key := range path {
		if n.children == nil {
			n.children = map[string]*node{}
		}
		next, ok := n.children[key]
		if ok && next.children == nil {
			// Already projected as a whole.
			return
		}
		if !ok {
			next = &node{}
			n.children[key] = next
		}
		n = next
	}
	n.children = nil
}

func newProjection(spec bson.D) (*projection, error) {
	if len(spec) == 0 {
		return nil, nil
	}
	p := &projection{id: true, fields: &node{}}
	modeSet := false
	idSet := false
	for _, e := range spec {
		on, err := truthy(e.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", e.Key, err)
		}
		if e.Key == "_id" {
			p.id = on
			idSet = true
			continue
		}
		if modeSet && on != p.include {
			return nil, fmt.Errorf("cannot mix inclusion and exclusion")
		}
		modeSet = true
		p.include = on
		p.fields.add(strings.Split(e.Key, "."))
	}
	if !modeSet && idSet && p.id {
		p.include = true
	}
	return p, nil
}

func truthy(v any) (bool, error) {
	switch x := normalize(v).(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	default:
		return false, fmt.Errorf("projection value must be a number or a boolean, got %T", v)
	}
}

func (p *projection) apply(doc bson.D) bson.D {
	if p == nil {
		return doc
	}
	r := bson.D{}
	for _, e := range doc {
		if e.Key == "_id" {
			if p.id {
				r = append(r, e)
			}
			continue
		}
		if v, ok := p.field(p.fields.children[e.Key], e.Value); ok {
			r = append(r, bson.E{Key: e.Key, Value: v})
		}
	}
	return r
}

// field returns what's left of a value after projecting it with the node,
// which is nil for paths not mentioned by the projection.
func (p *projection) field(n *node, v any) (any, bool) {
	if n == nil {
		return v, !p.include
	}
	if n.children == nil {
		return v, p.include
	}
	switch x := v.(type) {
	case bson.D:
		sub := bson.D{}
		for _, e := range x {
			if fv, ok := p.field(n.children[e.Key], e.Value); ok {
				sub = append(sub, bson.E{Key: e.Key, Value: fv})
			}
		}
		return sub, true
	case bson.A:
		var items bson.A
		for _, item := range x {
			if _, isDoc := item.(bson.D); !isDoc {
				if !p.include {
					items = append(items, item)
				}
				continue
			}
			fv, _ := p.field(n, item)
			items = append(items, fv)
		}
		return items, true
	default:
		return v, !p.include
	}
}
