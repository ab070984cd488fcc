package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUniqueAndValid(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
}

func TestValidRejectsPathTricks(t *testing.T) {
	for _, token := range []string{"", "..", "../etc/passwd", "abc", "{" + New() + "}"} {
		assert.False(t, Valid(token), token)
	}
}
