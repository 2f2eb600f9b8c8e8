package classifier

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mikey/deadline-triage/internal/core"
)

// UserClassifier is one owner's personalized relevance model
type UserClassifier struct {
	Owner   string
	Space   FeatureSpace
	Model   *LinearModel
	Version int64
}

// Clone returns an independent copy of the classifier assigned to owner
func (c *UserClassifier) Clone(owner string) *UserClassifier {
	return &UserClassifier{
		Owner:   owner,
		Space:   c.Space,
		Model:   c.Model.Clone(),
		Version: c.Version,
	}
}

// Probability returns the relevance probability of already-normalized text
func (c *UserClassifier) Probability(text string) float64 {
	return c.Model.Probability(c.Space.Vectorize(text))
}

// Predict returns 1 (relevant) or 0 (noise) for already-normalized text
func (c *UserClassifier) Predict(text string) int {
	return c.Model.Predict(c.Space.Vectorize(text))
}

// Learn applies one incremental update for already-normalized text
func (c *UserClassifier) Learn(text string, label int) {
	c.Model.PartialFit(c.Space.Vectorize(text), label)
}

type recordPayload struct {
	Owner   string       `json:"owner"`
	Version int64        `json:"version"`
	Space   FeatureSpace `json:"feature_space"`
	Model   modelPayload `json:"model"`
}

type modelPayload struct {
	Alpha   float64   `json:"alpha"`
	Steps   int64     `json:"steps"`
	Bias    float64   `json:"bias"`
	Indices []uint32  `json:"indices"`
	Values  []float64 `json:"values"`
}

// Encode serializes the classifier into a repository record
func Encode(c *UserClassifier) (*core.ClassifierRecord, error) {
	indices := c.Model.sortedIndices()
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = c.Model.Weights[idx]
	}

	payload, err := json.Marshal(recordPayload{
		Owner:   c.Owner,
		Version: c.Version,
		Space:   c.Space,
		Model: modelPayload{
			Alpha:   c.Model.Alpha,
			Steps:   c.Model.Steps,
			Bias:    c.Model.Bias,
			Indices: indices,
			Values:  values,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode classifier for %s: %w", c.Owner, err)
	}

	return &core.ClassifierRecord{
		Owner:   c.Owner,
		Version: c.Version,
		Payload: payload,
	}, nil
}

// Decode restores a classifier from a repository record. Any decoding or
// validation problem is reported as core.ErrClassifierCorrupt.
func Decode(rec *core.ClassifierRecord) (*UserClassifier, error) {
	if rec == nil || len(rec.Payload) == 0 {
		return nil, fmt.Errorf("empty record: %w", core.ErrClassifierCorrupt)
	}

	var p recordPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrClassifierCorrupt, err)
	}
	if p.Space.Dimensions == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", core.ErrClassifierCorrupt)
	}
	if len(p.Model.Indices) != len(p.Model.Values) {
		return nil, fmt.Errorf("%w: %d indices for %d values",
			core.ErrClassifierCorrupt, len(p.Model.Indices), len(p.Model.Values))
	}
	if p.Version < 0 {
		return nil, fmt.Errorf("%w: negative version", core.ErrClassifierCorrupt)
	}

	model := &LinearModel{
		Weights: make(map[uint32]float64, len(p.Model.Indices)),
		Bias:    p.Model.Bias,
		Alpha:   p.Model.Alpha,
		Steps:   p.Model.Steps,
	}
	for i, idx := range p.Model.Indices {
		model.Weights[idx] = p.Model.Values[i]
	}
	if err := model.Validate(p.Space.Dimensions); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrClassifierCorrupt, err)
	}
	model.init()

	owner := p.Owner
	if owner == "" {
		owner = rec.Owner
	}
	return &UserClassifier{
		Owner:   owner,
		Space:   p.Space,
		Model:   model,
		Version: p.Version,
	}, nil
}
