package pointers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointers(t *testing.T) {
	p := To(5)
	assert.Equal(t, 5, *p)
	assert.Equal(t, 5, ValueOr(p, 9))
	assert.Equal(t, 9, ValueOr[int](nil, 9))

	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, "x", SafeString(To("x")))
}
