package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	require.Equal(t, "joao pereira", Fold("  JOÃO \n Pereira "))
	require.Equal(t, "conceicao", Fold("Conceição"))
}

func TestSameName(t *testing.T) {
	cases := []struct {
		full     string
		recorded string
		expect   bool
	}{
		{"Maria Silva Souza", "Maria Souza", true},
		{"Maria Silva Souza", "Maria Silva", true},
		{"Maria Silva Souza", "MARIA SILVA SOUZA", true},
		{"Maria Silva Souza", "Silva Souza", true},
		{"José Antônio", "Jose Antonio", true},
		{"Maria Silva Souza", "João Pereira", false},
		{"Maria Silva Souza", "Mariana Costa", false},
		{"Maria Silva Souza", "", false},
		{"Mariana Costa", "Ana", false},
		{"Luciana Paula Souza", "Ana Paula", false},
		{"Luciana Paula Souza", "Paula Souza", true},
		{"Maria Silva Souza", "Souza Maria", false},
		{"Ana", "Ana Paula Souza", true},
	}
	for _, c := range cases {
		require.Equal(t, c.expect, SameName(c.full, c.recorded), "%q vs %q", c.full, c.recorded)
	}
}

func TestNameVariants(t *testing.T) {
	require.Equal(t, []string{"pablo santos werlang", "pablo werlang", "pablo santos"}, NameVariants("Pablo Santos Werlang"))
	require.Equal(t, []string{"pablo"}, NameVariants("Pablo"))
	require.Nil(t, NameVariants("  "))
}
