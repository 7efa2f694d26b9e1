package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowResult_StringVariants(t *testing.T) {
	assert.Equal(t, "ok", rowOK().String())
	assert.Contains(t, rowExternal(errors.New("x")).String(), "external")
	assert.Contains(t, rowFatal(errors.New("y")).String(), "fatal")
}
