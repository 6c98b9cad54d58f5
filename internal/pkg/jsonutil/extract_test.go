package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
		ok   bool
	}{
		"plain":        {in: `{"a":1}`, want: `{"a":1}`, ok: true},
		"fenced":       {in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`, ok: true},
		"bare fence":   {in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`, ok: true},
		"prose":        {in: "Sure! Here it is: {\"a\": {\"b\": 2}} hope it helps", want: `{"a": {"b": 2}}`, ok: true},
		"brace string": {in: `{"reason":"a } inside"}`, want: `{"reason":"a } inside"}`, ok: true},
		"unbalanced":   {in: `{"a": 1`, ok: false},
		"empty":        {in: "  ", ok: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ExtractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty("not json"))
}
