// Package domain contains core business entities and types for deterministic
// pharmacogenomic risk assessment following CPIC (Clinical Pharmacogenetics
// Implementation Consortium) guidelines.
//
// Reference: Relling MV, Klein TE. CPIC: Clinical Pharmacogenetics Implementation
// Consortium of the Pharmacogenomics Research Network. Clin Pharmacol Ther. 2011.
package domain

import "errors"

// RiskLabel represents the drug-specific safety verdict for a patient genotype.
// These labels come from a fixed enumeration, never free text, because an
// unrecognized label in a clinical result is a safety hazard.
type RiskLabel string

const (
	RiskSafe         RiskLabel = "Safe"
	RiskAdjustDosage RiskLabel = "Adjust Dosage"
	RiskToxic        RiskLabel = "Toxic"
	RiskIneffective  RiskLabel = "Ineffective"
	RiskUnknown      RiskLabel = "Unknown"
)

// Severity represents the clinical severity of an adverse drug-gene interaction
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Phenotype represents the metabolizer-status category derived from a diplotype
type Phenotype string

const (
	PhenotypePM      Phenotype = "PM"  // Poor Metabolizer
	PhenotypeIM      Phenotype = "IM"  // Intermediate Metabolizer
	PhenotypeNM      Phenotype = "NM"  // Normal Metabolizer
	PhenotypeRM      Phenotype = "RM"  // Rapid Metabolizer
	PhenotypeURM     Phenotype = "URM" // Ultrarapid Metabolizer
	PhenotypeUnknown Phenotype = "Unknown"
)

// MatchType represents the kind of knowledge-base match a rule record encodes.
// The matcher evaluates types in fixed precedence: variant > diplotype >
// phenotype > fallback.
type MatchType string

const (
	MatchVariant   MatchType = "variant"
	MatchDiplotype MatchType = "diplotype"
	MatchPhenotype MatchType = "phenotype"
	MatchFallback  MatchType = "fallback"
)

// FunctionTier represents the functional classification of a star allele
type FunctionTier string

const (
	FunctionNone      FunctionTier = "none"
	FunctionDecreased FunctionTier = "decreased"
	FunctionNormal    FunctionTier = "normal"
	FunctionIncreased FunctionTier = "increased"
	FunctionUnknown   FunctionTier = "unknown"
)

// UnknownAllele is the placeholder allele name used when a diplotype slot
// cannot be resolved from the observed variants.
const UnknownAllele = "Unknown"

// Validation errors for clinical data integrity
var (
	ErrInvalidRiskLabel = errors.New("invalid risk label")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidPhenotype = errors.New("invalid phenotype")
	ErrInvalidMatchType = errors.New("invalid match type")
	ErrInvalidFunction  = errors.New("invalid allele function tier")
)

// IsValid validates that the RiskLabel belongs to the fixed enumeration.
// Critical for medical software: only known labels may reach clinical output.
func (r RiskLabel) IsValid() bool {
	switch r {
	case RiskSafe, RiskAdjustDosage, RiskToxic, RiskIneffective, RiskUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk label.
func (r RiskLabel) String() string {
	return string(r)
}

// RequiresClinicalAction determines if the verdict requires prescriber follow-up.
func (r RiskLabel) RequiresClinicalAction() bool {
	switch r {
	case RiskToxic, RiskIneffective, RiskAdjustDosage:
		return true
	case RiskSafe, RiskUnknown:
		return false
	default:
		return true // Conservative approach for unknown labels
	}
}

// LogFields returns structured logging fields for audit trails.
func (r RiskLabel) LogFields() map[string]any {
	return map[string]any{
		"risk_label":      string(r),
		"is_valid":        r.IsValid(),
		"requires_action": r.RequiresClinicalAction(),
	}
}

// IsValid validates the severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid validates the phenotype category.
func (p Phenotype) IsValid() bool {
	switch p {
	case PhenotypePM, PhenotypeIM, PhenotypeNM, PhenotypeRM, PhenotypeURM, PhenotypeUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the phenotype.
func (p Phenotype) String() string {
	return string(p)
}

// Description returns a human-readable metabolizer description for clinical
// reporting and patient communication.
func (p Phenotype) Description() string {
	switch p {
	case PhenotypePM:
		return "Poor Metabolizer"
	case PhenotypeIM:
		return "Intermediate Metabolizer"
	case PhenotypeNM:
		return "Normal Metabolizer"
	case PhenotypeRM:
		return "Rapid Metabolizer"
	case PhenotypeURM:
		return "Ultrarapid Metabolizer"
	default:
		return "Metabolizer status unknown"
	}
}

// IsValid validates the match type.
func (m MatchType) IsValid() bool {
	switch m {
	case MatchVariant, MatchDiplotype, MatchPhenotype, MatchFallback:
		return true
	default:
		return false
	}
}

// String returns the string representation of the match type.
func (m MatchType) String() string {
	return string(m)
}

// Precedence returns the evaluation rank of the match type; lower wins.
func (m MatchType) Precedence() int {
	switch m {
	case MatchVariant:
		return 0
	case MatchDiplotype:
		return 1
	case MatchPhenotype:
		return 2
	case MatchFallback:
		return 3
	default:
		return 4
	}
}

// IsValid validates the allele function tier.
func (f FunctionTier) IsValid() bool {
	switch f {
	case FunctionNone, FunctionDecreased, FunctionNormal, FunctionIncreased, FunctionUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the function tier.
func (f FunctionTier) String() string {
	return string(f)
}
