package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublication_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "no expiry", expires: time.Time{}, want: false},
		{name: "future", expires: now.Add(time.Minute), want: false},
		{name: "exactly now", expires: now, want: true},
		{name: "past", expires: now.Add(-time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Publication{Path: "/secure/a.pdf", ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, p.Expired(now))
		})
	}
}

func TestMatchResult_LenPointer(t *testing.T) {
	m := &MatchResult{URL: "/a/b.pdf", Start: 10, End: 18}
	assert.Equal(t, 8, m.Len())
}
