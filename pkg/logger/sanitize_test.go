package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"email", "user@example.com", "u***@*******.com"},
		{"subdomain", "ab@mail.corp.io", "a*@****.****.io"},
		{"single char user", "a@x.com", "a@*.com"},
		{"no tld", "user@localhost", "u***@*********"},
		{"username only", "operator", "o*******"},
		{"single rune", "x", "x"},
		{"multibyte", "jöhn", "j***"},
		{"empty", "", "[empty]"},
		{"missing user", "@example.com", "@***********"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIdentifier(tt.identifier))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.False(t, SanitizeQueryString(""))
	assert.False(t, SanitizeQueryString("limit=10&offset=20"))
	assert.True(t, SanitizeQueryString("email=a@x.com"))
	assert.True(t, SanitizeQueryString("Token=abc"))
	assert.True(t, SanitizeQueryString("identifier=a"))
}
