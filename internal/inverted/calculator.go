package inverted

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotSupported rejects an option combination this package
// explicitly does not implement, such as surplus score-calculator
// parameters.
var ErrNotSupported = errors.New("inverted: not supported")

// ScoreCalculator turns raw per-term statistics into a single-term
// document score in two steps, firstStep (the TF term) and secondStep
// (the IDF term): the product of the two is the term's contribution
// to a document's score.
type ScoreCalculator interface {
	FirstStep(termFrequency, documentLength, averageDocumentLength float64) float64
	SecondStep(documentFrequency, totalDocumentFrequency float64) float64
}

// NormalizedTfIdfScoreCalculator computes
//
//	firstStep  = k1 + k2*tf / ((1-lambda)*L + lambda*ld)
//	secondStep = y + x*log(N/df)
//
// where k1/k2/x/y/lambda are the calculator's tunable parameters.
type NormalizedTfIdfScoreCalculator struct {
	K1, K2 float64
	X, Y   float64
	Lambda float64
}

// NewNormalizedTfIdfScoreCalculator returns a calculator with the
// standard defaults for the Okapi-style parameters.
func NewNormalizedTfIdfScoreCalculator() *NormalizedTfIdfScoreCalculator {
	return &NormalizedTfIdfScoreCalculator{
		K1:     0,
		K2:     1,
		X:      0.25,
		Y:      0.2,
		Lambda: 0.25,
	}
}

func (c *NormalizedTfIdfScoreCalculator) FirstStep(tf, ld, avgLength float64) float64 {
	return c.K1 + c.K2*tf/((1-c.Lambda)*avgLength+c.Lambda*ld)
}

func (c *NormalizedTfIdfScoreCalculator) SecondStep(df, totalDF float64) float64 {
	if df <= 0 || totalDF <= 0 {
		return 0
	}
	return c.Y + c.X*math.Log(totalDF/df)
}

// NormalizedOkapiTfScoreCalculator is the TF-only variant the
// formula generator emits for weighted terms: the same normalized
// first step, a constant second step.
type NormalizedOkapiTfScoreCalculator struct {
	K1, K2 float64
	Lambda float64
}

// NewNormalizedOkapiTfScoreCalculator returns the TF-only calculator
// with the standard defaults.
func NewNormalizedOkapiTfScoreCalculator() *NormalizedOkapiTfScoreCalculator {
	return &NormalizedOkapiTfScoreCalculator{K1: 0, K2: 1, Lambda: 0.25}
}

func (c *NormalizedOkapiTfScoreCalculator) FirstStep(tf, ld, avgLength float64) float64 {
	return c.K1 + c.K2*tf/((1-c.Lambda)*avgLength+c.Lambda*ld)
}

func (c *NormalizedOkapiTfScoreCalculator) SecondStep(float64, float64) float64 { return 1 }

// ParseScoreCalculator builds a calculator from its colon-separated
// description, e.g. "NormalizedOkapiTfIdf:1.0:1.0:0.25:0.2". The
// IDF family takes up to five parameters in the order k1:k2:x:lambda:y,
// the TF-only family up to three in the order k1:k2:lambda; surplus
// parameters are refused with ErrNotSupported.
func ParseScoreCalculator(desc string) (ScoreCalculator, error) {
	parts := strings.Split(desc, ":")
	name := parts[0]
	params := make([]float64, 0, len(parts)-1)
	for _, p := range parts[1:] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("inverted: score calculator parameter %q: %w", p, err)
		}
		params = append(params, v)
	}
	switch name {
	case "NormalizedOkapiTfIdf", "NormalizedTfIdf":
		if len(params) > 5 {
			return nil, fmt.Errorf("inverted: %s takes at most 5 parameters, got %d: %w",
				name, len(params), ErrNotSupported)
		}
		c := NewNormalizedTfIdfScoreCalculator()
		dst := []*float64{&c.K1, &c.K2, &c.X, &c.Lambda, &c.Y}
		for i, v := range params {
			*dst[i] = v
		}
		return c, nil
	case "NormalizedOkapiTf":
		if len(params) > 3 {
			return nil, fmt.Errorf("inverted: %s takes at most 3 parameters, got %d: %w",
				name, len(params), ErrNotSupported)
		}
		c := NewNormalizedOkapiTfScoreCalculator()
		dst := []*float64{&c.K1, &c.K2, &c.Lambda}
		for i, v := range params {
			*dst[i] = v
		}
		return c, nil
	}
	return nil, fmt.Errorf("inverted: unknown score calculator %q: %w", name, ErrNotSupported)
}

// Score computes one term's contribution to a document's score.
func Score(c ScoreCalculator, termFrequency, documentLength, averageDocumentLength, documentFrequency, totalDocumentFrequency float64) DocumentScore {
	return DocumentScore(c.FirstStep(termFrequency, documentLength, averageDocumentLength) *
		c.SecondStep(documentFrequency, totalDocumentFrequency))
}
