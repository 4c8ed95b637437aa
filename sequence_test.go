package beacon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceState(t *testing.T) {
	var s SequenceState

	assert.Equal(t, 0, s.Next(10))
	assert.Equal(t, 1, s.Next(10))
	assert.Equal(t, 2, s.Next(10))
	assert.Equal(t, 0, s.Next(11))
	assert.Equal(t, 1, s.Next(11))
	assert.Equal(t, 0, s.Next(10))
}

func TestSequenceState_FirstTimestampZero(t *testing.T) {
	var s SequenceState

	assert.Equal(t, 0, s.Next(0))
	assert.Equal(t, 1, s.Next(0))
}

func TestSequenceState_Independent(t *testing.T) {
	var a, b SequenceState

	a.Next(5)
	a.Next(5)

	assert.Equal(t, 0, b.Next(5))
	assert.Equal(t, 2, a.Next(5))
}
