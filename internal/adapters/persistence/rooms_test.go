package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLikeNeutralizesMetacharacters(t *testing.T) {
	assert.Equal(t, `\%`, escapeLike(`%`))
	assert.Equal(t, `100\% mix`, escapeLike(`100% mix`))
	assert.Equal(t, `lo\_fi`, escapeLike(`lo_fi`))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
