package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenericHelpers(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, UniqueSlice([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, UniqueSlice([]int(nil)))

	assert.Nil(t, NilIfEmpty(""))
	assert.Equal(t, "x", *NilIfEmpty("x"))

	assert.True(t, DereferencePtr[bool](nil, true))
	assert.False(t, DereferencePtr[bool](nil))
	f := false
	assert.False(t, DereferencePtr(&f, true))
	assert.True(t, *NewTrue())
}

func TestValidationHelpers(t *testing.T) {
	assert.True(t, IsValidEmail("ops@example.com"))
	assert.False(t, IsValidEmail("ops@"))
	assert.False(t, IsValidEmail(""))

	assert.NoError(t, ValidatePhoneNumber("+1 650-253-0000", CountryCode))
	assert.Error(t, ValidatePhoneNumber("12", CountryCode))

	type input struct {
		Name string `validate:"required"`
	}
	fields := ProcessValidationErrors(ValidateStruct(input{}))
	assert.Equal(t, map[string]string{"Name": "required"}, fields)
	assert.Equal(t, map[string]string{"error": assert.AnError.Error()}, ProcessValidationErrors(assert.AnError))
}
