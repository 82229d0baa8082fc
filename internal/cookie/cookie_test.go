package cookie_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/navigacontentlab/lambdaproxy/internal/cookie"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []cookie.Pair
	}{
		{
			name:   "empty",
			header: "",
			want:   nil,
		},
		{
			name:   "several pairs",
			header: "some=thing; testbool=false; testnull=null",
			want: []cookie.Pair{
				{Name: "some", Value: "thing"},
				{Name: "testbool", Value: "false"},
				{Name: "testnull", Value: "null"},
			},
		},
		{
			name:   "quoted and encoded values",
			header: `quoted="hello"; encoded=hello%20world; broken=100%`,
			want: []cookie.Pair{
				{Name: "quoted", Value: "hello"},
				{Name: "encoded", Value: "hello world"},
				{Name: "broken", Value: "100%"},
			},
		},
		{
			name:   "first occurrence wins",
			header: "a=1; a=2",
			want:   []cookie.Pair{{Name: "a", Value: "1"}},
		},
		{
			name:   "malformed pairs are skipped",
			header: "novalue; =nameless; ok=yes",
			want:   []cookie.Pair{{Name: "ok", Value: "yes"}},
		},
		{
			name:   "value containing equals",
			header: "token=a=b",
			want:   []cookie.Pair{{Name: "token", Value: "a=b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cookie.Parse(tt.header))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, "hello%20world", cookie.Encode("hello world"))
	assert.Equal(t, "it's%20(ok)!*~", cookie.Encode("it's (ok)!*~"))
	assert.Equal(t, "a%2Bb%3Dc%26d", cookie.Encode("a+b=c&d"))
	assert.Equal(t, "it's (ok)!", cookie.Decode("it's%20(ok)!"))
	assert.Equal(t, "%7B%22a%22%3A1%7D", cookie.Encode(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, cookie.Decode("%7B%22a%22%3A1%7D"))
	assert.Equal(t, "plain", cookie.Decode("plain"))
}

func TestSerialize(t *testing.T) {
	assert.Equal(t, "some=value; Path=/; HttpOnly; Secure", cookie.Serialize(&http.Cookie{
		Name:     "some",
		Value:    "value",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
	}))

	assert.Equal(t, "", cookie.Serialize(&http.Cookie{Name: "bad name", Value: "x"}))
}
