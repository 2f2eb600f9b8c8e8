package classifier

import (
	"hash/fnv"
	"math"
	"regexp"
	"sort"
)

// DefaultDimensions matches a 2^20 hashing space
const DefaultDimensions = 1 << 20

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Feature is one non-zero entry of a sparse vector
type Feature struct {
	Index uint32
	Value float64
}

// Vector is a sparse vector sorted by index
type Vector []Feature

// FeatureSpace hashes text into a fixed-dimensionality sparse vector.
// The parameters are fixed when a classifier is created.
type FeatureSpace struct {
	Dimensions    uint32 `json:"n_features"`
	StopWords     bool   `json:"stop_words"`
	AlternateSign bool   `json:"alternate_sign"`
}

// NewFeatureSpace returns the default feature space
func NewFeatureSpace() FeatureSpace {
	return FeatureSpace{
		Dimensions:    DefaultDimensions,
		StopWords:     true,
		AlternateSign: false,
	}
}

// Tokenize splits text into hashing tokens
func (fs FeatureSpace) Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	if !fs.StopWords {
		return raw
	}
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Vectorize maps text to an L2-normalized sparse vector
func (fs FeatureSpace) Vectorize(text string) Vector {
	counts := make(map[uint32]float64)
	for _, tok := range fs.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()

		value := 1.0
		if fs.AlternateSign && sum&0x80000000 != 0 {
			value = -1.0
		}
		counts[sum%fs.Dimensions] += value
	}

	vec := make(Vector, 0, len(counts))
	for idx, v := range counts {
		if v != 0 {
			vec = append(vec, Feature{Index: idx, Value: v})
		}
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].Index < vec[j].Index })

	var norm float64
	for _, f := range vec {
		norm += f.Value * f.Value
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i].Value /= norm
		}
	}
	return vec
}
