package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchResult_Len(t *testing.T) {
	m := MatchResult{URL: "/fileadmin/é.pdf", Quote: `"`, Start: 9, End: 25}
	assert.Equal(t, 16, m.Len())
	assert.Equal(t, len([]rune(m.URL)), m.Len())
}
