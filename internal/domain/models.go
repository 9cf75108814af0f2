package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Variant represents a single already-extracted variant call for one patient.
// Immutable; produced by the VCF extraction collaborator.
type Variant struct {
	RSID       string   `json:"rsid"`
	Chromosome string   `json:"chromosome"`
	Position   int64    `json:"position"`
	Reference  string   `json:"reference"`
	Alternate  string   `json:"alternate"`
	Genotype   string   `json:"genotype"` // normalized, e.g. "0/1", "1/1", "0/0"
	Gene       string   `json:"gene"`
	StarAllele string   `json:"star_allele,omitempty"`
	Quality    *float64 `json:"quality,omitempty"`
}

// NormalizeGenotype converts a raw GT string to canonical unphased form:
// phase separators become "/" and the lower allele index comes first, so
// "1|0" and "0/1" compare equal.
func NormalizeGenotype(gt string) string {
	gt = strings.ReplaceAll(gt, "|", "/")
	parts := strings.Split(gt, "/")
	if len(parts) != 2 {
		return gt
	}
	if parts[0] > parts[1] {
		parts[0], parts[1] = parts[1], parts[0]
	}
	return parts[0] + "/" + parts[1]
}

// IsHomRef reports whether the call is homozygous reference.
func (v Variant) IsHomRef() bool {
	return NormalizeGenotype(v.Genotype) == "0/0"
}

// IsHet reports whether the call is heterozygous.
func (v Variant) IsHet() bool {
	gt := NormalizeGenotype(v.Genotype)
	parts := strings.Split(gt, "/")
	return len(parts) == 2 && parts[0] != parts[1]
}

// IsHomAlt reports whether the call is homozygous for the alternate allele.
func (v Variant) IsHomAlt() bool {
	gt := NormalizeGenotype(v.Genotype)
	parts := strings.Split(gt, "/")
	return len(parts) == 2 && parts[0] == parts[1] && parts[0] != "0" && parts[0] != "."
}

// Validate ensures the variant carries the fields the resolver depends on.
func (v Variant) Validate() error {
	if v.RSID == "" {
		return fmt.Errorf("variant validation: rsid is required")
	}
	if v.Gene == "" {
		return fmt.Errorf("variant validation: gene is required")
	}
	if v.Position < 0 {
		return fmt.Errorf("variant validation: position must be non-negative")
	}
	return nil
}

// AlleleDefinition describes a named star allele for one gene: the variant
// signature that defines it and its functional classification. Loaded once
// from the knowledge base at startup; never mutated.
type AlleleDefinition struct {
	Gene     string       `json:"gene"`
	Name     string       `json:"name"`
	RSIDs    []string     `json:"rsids"` // defining signature; empty for the reference allele
	Function FunctionTier `json:"function"`
	Activity float64      `json:"activity"`
}

// IsReference reports whether this is the gene's reference (wild-type) allele,
// the allele assumed for unobserved sites on a diploid genome.
func (a AlleleDefinition) IsReference() bool {
	return len(a.RSIDs) == 0
}

// Diplotype is the canonical-order pair of allele names a patient carries for
// one gene. Always two elements; unresolvable slots hold UnknownAllele.
type Diplotype struct {
	Allele1 string `json:"allele1"`
	Allele2 string `json:"allele2"`
}

// NewDiplotype builds a canonicalized diplotype: alleles are sorted by the
// fixed collation order so that (*1,*4) and (*4,*1) produce the same value.
func NewDiplotype(a, b string) Diplotype {
	if CompareAlleles(a, b) > 0 {
		a, b = b, a
	}
	return Diplotype{Allele1: a, Allele2: b}
}

// UnknownDiplotype returns the diplotype used when no informative variants
// were found for a gene.
func UnknownDiplotype() Diplotype {
	return Diplotype{Allele1: UnknownAllele, Allele2: UnknownAllele}
}

// String renders the diplotype in conventional slash notation, e.g. "*1/*4".
func (d Diplotype) String() string {
	return d.Allele1 + "/" + d.Allele2
}

// IsUnknown reports whether either slot could not be resolved.
func (d Diplotype) IsUnknown() bool {
	return d.Allele1 == UnknownAllele || d.Allele2 == UnknownAllele
}

// Alleles returns both allele names.
func (d Diplotype) Alleles() [2]string {
	return [2]string{d.Allele1, d.Allele2}
}

// CompareAlleles is the fixed collation order for allele names. Star alleles
// compare by numeric designation (*2 before *10), suffixed forms (*2x2, *3A)
// after their base number, non-star names lexically, Unknown always last.
func CompareAlleles(a, b string) int {
	if a == b {
		return 0
	}
	if a == UnknownAllele {
		return 1
	}
	if b == UnknownAllele {
		return -1
	}
	an, asuf, aStar := splitStarAllele(a)
	bn, bsuf, bStar := splitStarAllele(b)
	switch {
	case aStar && !bStar:
		return -1
	case !aStar && bStar:
		return 1
	case aStar && bStar:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
		return strings.Compare(asuf, bsuf)
	default:
		return strings.Compare(a, b)
	}
}

// SortAlleles sorts allele names in place by the fixed collation order.
func SortAlleles(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return CompareAlleles(names[i], names[j]) < 0
	})
}

// splitStarAllele parses "*<digits><suffix>" into its numeric designation and
// suffix; ok is false for names that are not star alleles.
func splitStarAllele(name string) (num int, suffix string, ok bool) {
	if !strings.HasPrefix(name, "*") {
		return 0, "", false
	}
	rest := name[1:]
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(rest[:i])
	if err != nil {
		return 0, "", false
	}
	return n, rest[i:], true
}

// RuleRecord is one row of the pharmacogenomic knowledge base. The table is
// versioned as a whole via GuidelineVersion.
type RuleRecord struct {
	Gene             string    `json:"gene"`
	Drug             string    `json:"drug"`
	MatchType        MatchType `json:"match_type"`
	MatchKey         string    `json:"match_key"`
	MatchPriority    int       `json:"match_priority"`
	RiskLabel        RiskLabel `json:"risk_label"`
	Severity         Severity  `json:"severity"`
	ConfidenceBase   float64   `json:"confidence_base"`
	CPICGuideline    string    `json:"cpic_guideline"`
	DoseAdjustment   string    `json:"dose_adjustment"`
	AlternativeDrugs []string  `json:"alternative_drugs"`
	GuidelineVersion string    `json:"guideline_version"`
}

// Validate ensures a rule record meets the load-time contract.
func (r RuleRecord) Validate() error {
	if r.Gene == "" || r.Drug == "" {
		return fmt.Errorf("rule validation: gene and drug are required")
	}
	if !r.MatchType.IsValid() {
		return fmt.Errorf("rule validation: %w: %q", ErrInvalidMatchType, r.MatchType)
	}
	if r.MatchType != MatchFallback && r.MatchKey == "" {
		return fmt.Errorf("rule validation: match_key is required for %s rules", r.MatchType)
	}
	if !r.RiskLabel.IsValid() {
		return fmt.Errorf("rule validation: %w: %q", ErrInvalidRiskLabel, r.RiskLabel)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("rule validation: %w: %q", ErrInvalidSeverity, r.Severity)
	}
	if r.ConfidenceBase < 0 || r.ConfidenceBase > 1 {
		return fmt.Errorf("rule validation: confidence_base %.3f outside [0,1]", r.ConfidenceBase)
	}
	return nil
}

// DetectedVariant is the citation form of a variant in the final result.
type DetectedVariant struct {
	RSID       string `json:"rsid"`
	Chromosome string `json:"chromosome"`
	Position   int64  `json:"position"`
}

// RiskAssessmentResult is the engine's sole output per (patient, drug).
// Produced once per request and immutable thereafter; ownership passes to the
// explanation layer for read-only annotation.
type RiskAssessmentResult struct {
	Gene              string            `json:"gene"`
	Drug              string            `json:"drug"`
	Diplotype         Diplotype         `json:"diplotype"`
	Phenotype         Phenotype         `json:"phenotype"`
	DetectedVariants  []DetectedVariant `json:"detected_variants"`
	RiskLabel         RiskLabel         `json:"risk_label"`
	Severity          Severity          `json:"severity"`
	ConfidenceScore   float64           `json:"confidence_score"`
	MatchType         MatchType         `json:"match_type"`
	GuidelineVersion  string            `json:"guideline_version"`
	CPICGuideline     string            `json:"cpic_guideline"`
	DoseAdjustment    string            `json:"dose_adjustment"`
	AlternativeDrugs  []string          `json:"alternative_drugs"`
	VCFParsingSuccess bool              `json:"vcf_parsing_success"`
}

// LogFields returns structured logging fields for the audit trail.
func (r *RiskAssessmentResult) LogFields() map[string]any {
	return map[string]any{
		"gene":       r.Gene,
		"drug":       r.Drug,
		"diplotype":  r.Diplotype.String(),
		"phenotype":  r.Phenotype.String(),
		"risk_label": r.RiskLabel.String(),
		"severity":   r.Severity.String(),
		"confidence": r.ConfidenceScore,
		"match_type": r.MatchType.String(),
	}
}

// Explanation is the output of the downstream explanation renderer. It
// annotates a frozen RiskAssessmentResult and never alters it.
type Explanation struct {
	Summary              string   `json:"summary"`
	Mechanism            string   `json:"mechanism"`
	VariantCitations     []string `json:"variant_citations"`
	ExplainerConfidence  float64  `json:"llm_confidence"`
	GeneratedByTemplates bool     `json:"-"`
}

// AssessmentRecord is the persisted audit form of one completed assessment.
type AssessmentRecord struct {
	ID        int64                `json:"id"`
	PatientID string               `json:"patient_id"`
	RequestID string               `json:"request_id"`
	Result    RiskAssessmentResult `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
}
