package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("user@example.com"))
	assert.True(t, IsValidEmail("first.last+tag@sub.example.co.uk"))
	assert.False(t, IsValidEmail("plainaddress"))
	assert.False(t, IsValidEmail("user@"))
	assert.False(t, IsValidEmail("@example.com"))
	assert.False(t, IsValidEmail(""))
}

func TestIsValidFQDN(t *testing.T) {
	assert.True(t, IsValidFQDN("example.com"))
	assert.True(t, IsValidFQDN("mail.sub.example.org"))
	assert.False(t, IsValidFQDN("localhost"))
	assert.False(t, IsValidFQDN("user@example.com"))
	assert.False(t, IsValidFQDN(""))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractDomain("user@example.com"))
	assert.Equal(t, "", ExtractDomain("no-at-sign"))
	assert.Equal(t, "", ExtractDomain("two@at@signs"))
}

func TestValidateStructFormatsErrors(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
	}

	assert.NoError(t, ValidateStruct(req{Email: "user@example.com"}))

	err := ValidateStruct(req{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	err = ValidateStruct(req{Email: "nope"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")
}
