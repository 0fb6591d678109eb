package password

import (
	"errors"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	// MaxScore is the top of the zxcvbn score range.
	MaxScore = 4

	// DefaultMinScore rejects passwords scoring below "somewhat guessable".
	DefaultMinScore = 2
)

// Estimator scores candidate passwords on the zxcvbn 0..4 scale.
type Estimator struct {
	minScore int
}

// NewEstimator returns an Estimator enforcing minScore as the floor.
func NewEstimator(minScore int) (*Estimator, error) {
	if minScore < 0 || minScore > MaxScore {
		return nil, errors.New("minimum score must be between 0 and 4")
	}
	return &Estimator{minScore: minScore}, nil
}

// MinScore returns the configured floor.
func (e *Estimator) MinScore() int {
	return e.minScore
}

// Score rates candidate against the zxcvbn estimator. userInputs should
// contain user-identifying strings (email local part, display name) so
// passwords derived from them are penalized.
func (e *Estimator) Score(candidate string, userInputs []string) int {
	return zxcvbn.PasswordStrength(candidate, userInputs).Score
}

// Acceptable reports whether candidate meets the configured floor and
// returns the computed score either way.
func (e *Estimator) Acceptable(candidate string, userInputs []string) (bool, int) {
	score := e.Score(candidate, userInputs)
	return score >= e.minScore, score
}
