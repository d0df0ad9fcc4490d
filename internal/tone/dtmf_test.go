package tone

import "testing"

func TestFrequenciesKeypadLayout(t *testing.T) {
	tests := []struct {
		symbol    rune
		low, high float64
	}{
		{'1', 697, 1209},
		{'2', 697, 1336},
		{'3', 697, 1477},
		{'A', 697, 1633},
		{'4', 770, 1209},
		{'5', 770, 1336},
		{'6', 770, 1477},
		{'B', 770, 1633},
		{'7', 852, 1209},
		{'8', 852, 1336},
		{'9', 852, 1477},
		{'C', 852, 1633},
		{'*', 941, 1209},
		{'0', 941, 1336},
		{'#', 941, 1477},
		{'D', 941, 1633},
	}

	for _, tt := range tests {
		low, high, ok := Frequencies(tt.symbol)
		if !ok {
			t.Errorf("Frequencies(%q) not found", tt.symbol)
			continue
		}
		if low != tt.low || high != tt.high {
			t.Errorf("Frequencies(%q) = (%v, %v), want (%v, %v)",
				tt.symbol, low, high, tt.low, tt.high)
		}
	}
}

func TestFrequenciesLowercase(t *testing.T) {
	low, high, ok := Frequencies('b')
	if !ok {
		t.Fatal("Frequencies('b') not found")
	}
	if low != 770 || high != 1633 {
		t.Errorf("Frequencies('b') = (%v, %v), want (770, 1633)", low, high)
	}
}

func TestFrequenciesUnknownSymbol(t *testing.T) {
	for _, symbol := range []rune{'E', 'x', ' ', ',', '-', '!'} {
		if _, _, ok := Frequencies(symbol); ok {
			t.Errorf("Frequencies(%q) = ok, want not found", symbol)
		}
		if ValidSymbol(symbol) {
			t.Errorf("ValidSymbol(%q) = true, want false", symbol)
		}
	}
}

func TestValidSymbolCoversAlphabet(t *testing.T) {
	for _, symbol := range "0123456789ABCD*#" {
		if !ValidSymbol(symbol) {
			t.Errorf("ValidSymbol(%q) = false, want true", symbol)
		}
	}
}
