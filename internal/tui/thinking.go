package tui

import "math/rand/v2"

// Shown while a reply is on its way and no text has arrived yet
var thinkingPhrases = []string{
	"Reflecting on Knowledge",
	"Analyzing your Query",
	"Gathering relevant Context",
	"Interpreting Context",
	"Formulating Response",
	"Synthesizing Information",
	"Giving a Thoughtful Response",
	"Processing your Request",
}

// pickPhrase chooses a thinking phrase using intn, which must return a value
// in [0, n).
func pickPhrase(intn func(n int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return thinkingPhrases[intn(len(thinkingPhrases))]
}
