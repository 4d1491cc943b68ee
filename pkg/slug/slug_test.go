package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ceramic Mug", "ceramic-mug"},
		{"  Hello   World!  ", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"Crème Brûlée Mug", "creme-brulee-mug"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Straße", "strasse"},
		{"Salt & Pepper Set", "salt-and-pepper-set"},
		{"USB-C Cable (2m)", "usb-c-cable-2m"},
		{"---", ""},
		{"", ""},
		{"日本", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("p1", "p1", "Ceramic Mug"))
	assert.True(t, Matches("ceramic-mug", "p1", "Ceramic Mug"))
	assert.False(t, Matches("ceramic", "p1", "Ceramic Mug"))
}
