package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPathAttr_BareAttribute(t *testing.T) {
	p := NewPathAttr("email")
	assert.Equal(t, "email", p.Name())
	assert.Equal(t, `"email"`, p.String())
}

func TestNewPathAttr_QualifiedPath(t *testing.T) {
	p := NewPathAttr("orders.customer_id")
	assert.Equal(t, "customer_id", p.Name())
	assert.Equal(t, `"orders"."customer_id"`, p.String())
}

func TestNewPathAttr_MultiSegmentPath(t *testing.T) {
	p := NewPathAttr("a.b.c")
	assert.Equal(t, []string{"a", "b"}, p.Path)
	assert.Equal(t, `"a"."b"."c"`, p.String())
}
