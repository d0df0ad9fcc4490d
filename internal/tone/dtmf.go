// Package tone synthesizes the softphone's local audio signals: DTMF digits,
// incoming/outgoing ring patterns, and one-shot feedback, error, and busy
// tones. It has no dependency on the signaling stack; playback is best-effort
// and never fails a call-control operation.
package tone

// Standard DTMF dual-tone layout: row frequencies 697/770/852/941 Hz crossed
// with column frequencies 1209/1336/1477/1633 Hz in keypad order.
var dtmfFrequencies = map[rune][2]float64{
	'1': {697, 1209},
	'2': {697, 1336},
	'3': {697, 1477},
	'A': {697, 1633},
	'4': {770, 1209},
	'5': {770, 1336},
	'6': {770, 1477},
	'B': {770, 1633},
	'7': {852, 1209},
	'8': {852, 1336},
	'9': {852, 1477},
	'C': {852, 1633},
	'*': {941, 1209},
	'0': {941, 1336},
	'#': {941, 1477},
	'D': {941, 1633},
}

// Frequencies returns the (low, high) frequency pair for a DTMF symbol.
// The letter symbols accept lowercase.
func Frequencies(symbol rune) (low, high float64, ok bool) {
	pair, ok := dtmfFrequencies[normalize(symbol)]
	if !ok {
		return 0, 0, false
	}
	return pair[0], pair[1], true
}

// ValidSymbol reports whether symbol is a member of the 16-entry DTMF
// alphabet.
func ValidSymbol(symbol rune) bool {
	_, ok := dtmfFrequencies[normalize(symbol)]
	return ok
}

func normalize(symbol rune) rune {
	if symbol >= 'a' && symbol <= 'd' {
		return symbol - 'a' + 'A'
	}
	return symbol
}
