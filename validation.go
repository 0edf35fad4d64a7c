package sda

import (
	"fmt"
	"math"
	"math/bits"
)

// SecurityLevel represents the security level of scheme parameters
type SecurityLevel string

const (
	SecurityLevelLow    SecurityLevel = "low"
	SecurityLevelMedium SecurityLevel = "medium"
	SecurityLevelHigh   SecurityLevel = "high"
)

// ValidationResult contains the result of scheme validation. Hard errors make
// the scheme unusable; warnings describe weak but legal parameter choices.
type ValidationResult struct {
	Valid           bool          `json:"valid"`
	SecurityLevel   SecurityLevel `json:"security_level"`
	FaultTolerance  int           `json:"fault_tolerance"`  // clerks that may go missing
	CollusionBound  int           `json:"collusion_bound"`  // clerks that must collude to unmask
	Warnings        []string      `json:"warnings,omitempty"`
	Errors          []string      `json:"errors,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// ThresholdValidator provides validation for committee threshold parameters
type ThresholdValidator struct {
	MinModulusBits      int     `json:"min_modulus_bits"`
	RecommendedMinRatio float64 `json:"recommended_min_ratio"`
	RecommendedMaxRatio float64 `json:"recommended_max_ratio"`
}

// NewDefaultThresholdValidator creates a validator with default recommendations
func NewDefaultThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{
		MinModulusBits:      32,
		RecommendedMinRatio: 0.51, // a majority of clerks must collude
		RecommendedMaxRatio: 0.80, // leave room for absent clerks
	}
}

// Assess validates the scheme and grades its parameters
func (tv *ThresholdValidator) Assess(scheme *Scheme) *ValidationResult {
	result := &ValidationResult{
		Valid:           true,
		SecurityLevel:   SecurityLevelMedium,
		Warnings:        []string{},
		Errors:          []string{},
		Recommendations: []string{},
	}

	if err := scheme.Validate(); err != nil {
		result.Valid = false
		result.SecurityLevel = SecurityLevelLow
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	n, t := scheme.ShareCount, scheme.Threshold
	result.FaultTolerance = n - t
	result.CollusionBound = t

	ratio := float64(t) / float64(n)
	if ratio >= tv.RecommendedMinRatio {
		result.SecurityLevel = SecurityLevelHigh
	}
	if ratio < tv.RecommendedMinRatio {
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "a minority of clerks can reconstruct masks")
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("consider a threshold of at least %d", int(math.Ceil(float64(n)*tv.RecommendedMinRatio))))
	} else if ratio > tv.RecommendedMaxRatio && t < n {
		result.Warnings = append(result.Warnings, "threshold ratio is high, may affect availability")
	}

	if t == 1 {
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "threshold of 1 lets any single clerk unmask")
	}

	if t == n {
		result.Warnings = append(result.Warnings, "threshold equals committee size - no fault tolerance")
		if scheme.Sharing == SharingShamir {
			result.Recommendations = append(result.Recommendations, "consider reducing threshold to allow for absent clerks")
		}
	}

	if size := bits.Len64(uint64(scheme.Modulus)); size < tv.MinModulusBits {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("modulus is only %d bits; aggregates wrap around quickly", size))
	}

	return result
}

// AssessScheme grades a scheme with the default validator
func AssessScheme(scheme *Scheme) *ValidationResult {
	return NewDefaultThresholdValidator().Assess(scheme)
}
