package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "fenced json block",
			text: "Here you go:\n```json\n{\"a\": 1}\n```\ntrailing prose",
			want: `{"a": 1}`,
		},
		{
			name: "fenced plain block",
			text: "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "json fence preferred over plain fence",
			text: "```\nnot it\n```\n```json\n{\"a\": 2}\n```",
			want: `{"a": 2}`,
		},
		{
			name: "brace balanced span",
			text: `The answer is {"a": {"b": 2}} as requested.`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "braces inside strings ignored",
			text: `prefix {"a": "has } brace"} suffix`,
			want: `{"a": "has } brace"}`,
		},
		{
			name: "raw text fallback",
			text: "  no json at all  ",
			want: "no json at all",
		},
		{
			name: "unbalanced braces fall back to raw",
			text: `{"a": 1`,
			want: `{"a": 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.text))
		})
	}
}
