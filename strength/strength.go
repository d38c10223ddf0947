// Package strength scores candidate passwords with zxcvbn.
package strength

import (
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// MinScore is the lowest score a new password may have.
const MinScore = 2

type Result struct {
	Score     int // 0 (weak) to 4 (strong)
	CrackTime string
	Entropy   float64
}

// Acceptable reports whether the score meets MinScore.
func (r Result) Acceptable() bool {
	return r.Score >= MinScore
}

func (r Result) Label() string {
	switch r.Score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "strong"
	default:
		return "very strong"
	}
}

// Check scores password. userInputs are extra words, such as the site and
// username, that should not make a password stronger.
func Check(password string, userInputs ...string) Result {
	if password == "" {
		return Result{CrackTime: "instant"}
	}
	m := zxcvbn.PasswordStrength(password, userInputs)
	return Result{
		Score:     m.Score,
		CrackTime: m.CrackTimeDisplay,
		Entropy:   m.Entropy,
	}
}
