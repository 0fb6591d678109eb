package security

import (
	"strings"

	"github.com/authcore-io/authcore/repository"
)

// DefaultDriftThreshold is the similarity score below which a presented
// fingerprint counts as drifted from the user's device history.
const DefaultDriftThreshold = 0.6

// Feature weights for the similarity score. They sum to 1 so the score
// stays in [0,1].
const (
	weightUserAgent = 0.25
	weightOS        = 0.20
	weightDevice    = 0.15
	weightLanguages = 0.15
	weightTimezone  = 0.15
	weightScreen    = 0.10
)

// FingerprintComparator scores a presented device fingerprint against a
// user's recent history. Pure computation, no I/O.
type FingerprintComparator struct {
	threshold float64
}

// NewFingerprintComparator returns a comparator. A non-positive threshold
// falls back to [DefaultDriftThreshold].
func NewFingerprintComparator(driftThreshold float64) *FingerprintComparator {
	if driftThreshold <= 0 || driftThreshold > 1 {
		driftThreshold = DefaultDriftThreshold
	}
	return &FingerprintComparator{threshold: driftThreshold}
}

// Similarity scores two fingerprints in [0,1]: weighted exact matches on the
// categorical features plus a Jaccard score over accepted languages.
func (c *FingerprintComparator) Similarity(a, b *repository.Fingerprint) float64 {
	if a == nil || b == nil {
		return 0
	}

	var score float64
	if foldEqual(a.UserAgentFamily, b.UserAgentFamily) {
		score += weightUserAgent
	}
	if foldEqual(a.OSFamily, b.OSFamily) {
		score += weightOS
	}
	if foldEqual(a.DeviceType, b.DeviceType) {
		score += weightDevice
	}
	if foldEqual(a.Timezone, b.Timezone) {
		score += weightTimezone
	}
	if foldEqual(a.ScreenBucket, b.ScreenBucket) {
		score += weightScreen
	}
	score += weightLanguages * jaccard(a.Languages, b.Languages)

	return score
}

// Compare scores the presented fingerprint against each recent one and
// reports the best score and whether it falls below the drift threshold.
// With no history there is nothing to drift from, so the answer is a match.
func (c *FingerprintComparator) Compare(presented *repository.Fingerprint, recent []*repository.Fingerprint) (float64, bool) {
	if presented == nil || len(recent) == 0 {
		return 1, false
	}

	var best float64
	for _, fp := range recent {
		if s := c.Similarity(presented, fp); s > best {
			best = s
		}
	}
	return best, best < c.threshold
}

func foldEqual(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[strings.ToLower(v)] = struct{}{}
	}

	union := len(set)
	var intersect int
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		v = strings.ToLower(v)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			intersect++
		} else {
			union++
		}
	}

	return float64(intersect) / float64(union)
}
