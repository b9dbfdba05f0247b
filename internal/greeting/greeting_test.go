package greeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "World", want: "Hello, World! You've been greeted from Rust!"},
		{name: "empty", in: "", want: "Hello, ! You've been greeted from Rust!"},
		{name: "markup passes through", in: "<b>x</b> & %d", want: "Hello, <b>x</b> & %d! You've been greeted from Rust!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestFormatWithUser(t *testing.T) {
	assert.Equal(t,
		"Hello, World! You've been greeted from Rust! User from DB: Test User",
		FormatWithUser("World", "Test User"))
	assert.Equal(t,
		"Hello, Bob! You've been greeted from Rust! User from DB: No user",
		FormatWithUser("Bob", NoUser))
}
