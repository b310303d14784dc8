package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractQueryName(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT id FROM sessions", "SELECT"},
		{"\n\t\tUPDATE sessions SET status = $1", "UPDATE"},
		{"INSERT INTO products (name) VALUES ($1)", "INSERT"},
		{"", "unknown"},
		{"BEGIN", "BEGIN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractQueryName(tt.sql))
	}
}
