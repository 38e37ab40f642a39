package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapse whitespace", "  123   Main  St ", "123 Main St"},
		{"strip disallowed chars", "123 Main St @ Apt #4!", "123 Main St Apt #4"},
		{"uppercase state before zip", "123 Main St, Springfield, ny 10001", "123 Main St, Springfield, NY 10001"},
		{"leave non-state token alone", "Box qq 10001", "Box qq 10001"},
		{"fold diacritics", "12 Café José Ave, Peñasco, NM 87553", "12 Cafe Jose Ave, Penasco, NM 87553"},
		{"zip plus four", "9 Elm Ln, Troy, ny 12180-1234", "9 Elm Ln, Troy, NY 12180-1234"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestAbbreviateStreet(t *testing.T) {
	assert.Equal(t, "123 Main St", AbbreviateStreet("123 Main Street"))
	assert.Equal(t, "9 Oak Blvd", AbbreviateStreet("9 Oak Boulevard"))
	assert.Equal(t, "77 Fifth Ave", AbbreviateStreet("77 Fifth Avenue"))
	assert.Equal(t, "123 Main St", AbbreviateStreet("123 Main St"))
	assert.Equal(t, "Broadway", AbbreviateStreet("Broadway"))
}

func TestStateAbbrev(t *testing.T) {
	assert.Equal(t, "NY", StateAbbrev("New York"))
	assert.Equal(t, "NY", StateAbbrev("new york"))
	assert.Equal(t, "CA", StateAbbrev("ca"))
	assert.Equal(t, "", StateAbbrev("Ontario"))
	assert.Equal(t, "", StateAbbrev("XX"))
}

func TestIsStateCode(t *testing.T) {
	assert.True(t, IsStateCode("NY"))
	assert.True(t, IsStateCode("dc"))
	assert.False(t, IsStateCode("ZZ"))
}
