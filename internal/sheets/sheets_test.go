package sheets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostCell(t *testing.T) {
	tests := []struct {
		cell string
		want int
		ok   bool
	}{
		{"700", 700, true},
		{" 700 ", 700, true},
		{"Post 700", 700, true},
		{"Post700", 700, true},
		{"Post", 0, false},
		{"", 0, false},
		{"Schedule", 0, false},
		{"7.5", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePostCell(tt.cell)
		assert.Equal(t, tt.ok, ok, tt.cell)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.cell)
		}
	}
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{700: true, 701: true}
	active, err := src.ActivePosts(context.Background())
	require.NoError(t, err)
	assert.True(t, active[700])
	assert.False(t, active[702])
}
