package sentiment

import "regexp"

// A lead-in phrase, a colon, then the point up to the next sentence terminator.
func leadIn(phrases string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + phrases + `)\s*:\s*([^.!?]*)`)
}

var positiveRules = []*regexp.Regexp{
	leadIn(`avantages?|points? forts?|qualités?|points? positifs?`),
	leadIn(`nous (?:avons )?aimé|on aime|j['’]aime`),
	leadIn(`excellent|remarquable|parfait`),
	leadIn(`forces?`),
	leadIn(`atouts?|succès`),
}

var negativeRules = []*regexp.Regexp{
	leadIn(`inconvénients?|points? faibles?|défauts?|points? négatifs?`),
	leadIn(`nous (?:n['’]avons )?pas aimé|on (?:n['’])?aime pas|je (?:n['’])?aime pas`),
	leadIn(`décevant|regrettable|dommage`),
	leadIn(`faiblesses?`),
	leadIn(`limites?|problèmes?`),
}

var positiveLexicon = []string{"excellent", "remarquable", "confortable", "agréable", "qualité", "réussi"}

var negativeLexicon = []string{"décevant", "problème", "défaut", "manque", "regrettable"}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)
