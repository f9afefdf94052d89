package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/apperr"
)

func TestQty(t *testing.T) {
	for in, want := range map[string]int{"1": 1, " 12 ": 12} {
		got, ok := Qty(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "0", "-2", "1.5", "abc"} {
		_, ok := Qty(in)
		assert.False(t, ok, in)
	}
}

func TestPrice(t *testing.T) {
	d, ok := Price("10.99")
	require.True(t, ok)
	assert.Equal(t, "10.99", d.StringFixed(2))

	for _, in := range []string{"0", "0.00", "-1", "1.999", "1e3", ""} {
		_, ok := Price(in)
		assert.False(t, ok, in)
	}
}

func TestStructReportsField(t *testing.T) {
	err := Struct(ItemForm{Name: "Lamp", Price: "free"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "price is invalid", apperr.As(err).Message())

	assert.NoError(t, Struct(ItemForm{Name: "Lamp", Price: "3.50", ImageURL: "https://img.example/l.png"}))
	assert.Error(t, Struct(RegisterForm{Email: "a@b.co", Name: "A", Password: "short"}))
}

func TestIDAndEmail(t *testing.T) {
	id, ok := ID("42")
	require.True(t, ok)
	assert.EqualValues(t, 42, id)
	_, ok = ID("0")
	assert.False(t, ok)

	_, ok = Email("not-an-email")
	assert.False(t, ok)
	e, ok := Email(" a@b.co ")
	require.True(t, ok)
	assert.Equal(t, "a@b.co", e)
}
