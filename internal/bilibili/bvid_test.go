package bilibili

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBvidToAid covers spec §8 test vector 1 and invariant P7.
func TestBvidToAid(t *testing.T) {
	assert.Equal(t, uint64(1401752220), BvidToAid("BV1Tr421n746"))
	assert.Equal(t, uint64(1051892992), BvidToAid("BV1sH4y1s7fe"))
}
