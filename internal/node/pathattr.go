package node

import "strings"

// PathAttr is a qualified attribute reference: a join path of entity/alias
// names followed by the attribute name at the end of that path. It exists so
// an Extract's BaseQuery can be built up from named references instead of
// hand-quoted SQL fragments.
//
// Grounded on original_source/dbgen/core/expr/pathattr.py's PathAttr, which
// renders a path and a trailing attribute as a qualified column reference;
// the join-path/FK-walk machinery that backs it there has no analogue here,
// since BaseQuery takes a pre-rendered SQL string rather than building one.
type PathAttr struct {
	Path []string
	Attr string
}

// NewPathAttr builds a PathAttr from a dotted string such as "orders.id" or
// "a.b.c"; the last segment is the attribute, everything before it the path.
func NewPathAttr(dotted string) PathAttr {
	parts := strings.Split(dotted, ".")
	if len(parts) == 1 {
		return PathAttr{Attr: parts[0]}
	}
	return PathAttr{Path: parts[:len(parts)-1], Attr: parts[len(parts)-1]}
}

// String renders the reference as a double-quoted, dot-joined SQL
// identifier path, e.g. "orders"."customer_id".
func (p PathAttr) String() string {
	var b strings.Builder
	for _, seg := range p.Path {
		b.WriteByte('"')
		b.WriteString(seg)
		b.WriteString(`".`)
	}
	b.WriteByte('"')
	b.WriteString(p.Attr)
	b.WriteByte('"')
	return b.String()
}

// Name returns the bare attribute name, ignoring the path.
func (p PathAttr) Name() string { return p.Attr }
