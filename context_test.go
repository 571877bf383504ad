package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUOrder(t *testing.T) {
	l := newLRUList(4)
	l.touch(0)
	l.touch(1)
	l.touch(2)
	assert.Equal(t, 0, l.oldest())

	l.touch(0) // 0 becomes most recent
	assert.Equal(t, 1, l.oldest())

	l.remove(1)
	assert.Equal(t, 2, l.oldest())

	l.remove(2)
	l.remove(0)
	assert.Equal(t, lruNil, l.oldest())
}

func TestLRUSingle(t *testing.T) {
	l := newLRUList(2)
	l.touch(1)
	assert.Equal(t, 1, l.oldest())
	l.touch(1)
	assert.Equal(t, 1, l.oldest())
}

func TestCRCWindowCounting(t *testing.T) {
	c := &decompContext{}
	assert.Equal(t, 1, c.markCRC(false, 8))
	assert.Equal(t, 1, c.markCRC(true, 8))
	assert.Equal(t, 2, c.markCRC(false, 8))

	c.resetCRCWindow()
	assert.Equal(t, 0, c.markCRC(true, 8))
}
