package vision

import (
	"math"
	"strings"
)

const (
	minRemoteDirtiness  = 30
	maxRemoteDirtiness  = 95
	cleanScore          = 95
	minRemoteCleanness  = 60
	pointsPerWasteMatch = 15
)

var dirtinessKeywords = []string{
	"trash", "garbage", "litter", "waste", "plastic", "debris", "rubbish",
	"bottle", "can", "bag", "pollution", "dump", "dirty", "filth",
}

var cleanlinessKeywords = []string{
	"trash", "garbage", "litter", "waste", "plastic", "debris", "rubbish",
	"bottle", "can", "bag", "pollution", "dump", "dirty",
}

// matchWaste counts labels whose lower-cased name contains any keyword and
// sums their confidence. A label counts once however many keywords it hits.
func matchWaste(d *Detection, keywords []string) (count int, confidence float64) {
	if d == nil {
		return 0, 0
	}
	for _, group := range [][]Label{d.Tags, d.Objects} {
		for _, l := range group {
			name := strings.ToLower(l.Name)
			for _, k := range keywords {
				if strings.Contains(name, k) {
					count++
					confidence += l.Confidence
					break
				}
			}
		}
	}
	return count, confidence
}

// DirtinessScore maps a detection to 30..95. Up to 70 points come from the
// match count and up to 30 from summed confidence.
func DirtinessScore(d *Detection) int {
	count, confidence := matchWaste(d, dirtinessKeywords)
	base := math.Min(float64(count*pointsPerWasteMatch), 70)
	boost := math.Min(confidence*10, 30)
	score := int(math.Min(base+boost, maxRemoteDirtiness))
	if count > 0 && score < minRemoteDirtiness {
		score = minRemoteDirtiness
	}
	return max(score, minRemoteDirtiness)
}

// CleanlinessScore is 95 with no waste in sight, otherwise never below 60.
func CleanlinessScore(d *Detection) int {
	count, _ := matchWaste(d, cleanlinessKeywords)
	if count == 0 {
		return cleanScore
	}
	return max(minRemoteCleanness, cleanScore-pointsPerWasteMatch*count)
}
