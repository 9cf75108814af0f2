package api

import (
	"time"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// AnalyzeResponse is the per-drug response body for a successful assessment.
type AnalyzeResponse struct {
	PatientID               string                  `json:"patient_id"`
	Drug                    string                  `json:"drug"`
	Timestamp               string                  `json:"timestamp"`
	RiskAssessment          RiskAssessment          `json:"risk_assessment"`
	PharmacogenomicProfile  PharmacogenomicProfile  `json:"pharmacogenomic_profile"`
	ClinicalRecommendation  ClinicalRecommendation  `json:"clinical_recommendation"`
	LLMGeneratedExplanation LLMGeneratedExplanation `json:"llm_generated_explanation"`
	QualityMetrics          QualityMetrics          `json:"quality_metrics"`
}

// RiskAssessment is the headline risk verdict.
type RiskAssessment struct {
	RiskLabel       string  `json:"risk_label"`
	ConfidenceScore float64 `json:"confidence_score"`
	Severity        string  `json:"severity"`
}

// PharmacogenomicProfile describes the genomic evidence behind the verdict.
type PharmacogenomicProfile struct {
	PrimaryGene      string                   `json:"primary_gene"`
	Diplotype        string                   `json:"diplotype"`
	Phenotype        string                   `json:"phenotype"`
	DetectedVariants []domain.DetectedVariant `json:"detected_variants"`
}

// ClinicalRecommendation carries the CPIC guidance for the pair.
type ClinicalRecommendation struct {
	CPICGuideline    string   `json:"cpic_guideline"`
	DoseAdjustment   string   `json:"dose_adjustment"`
	AlternativeDrugs []string `json:"alternative_drugs"`
}

// LLMGeneratedExplanation is the annotation layer's output.
type LLMGeneratedExplanation struct {
	Summary          string   `json:"summary"`
	Mechanism        string   `json:"mechanism"`
	VariantCitations []string `json:"variant_citations"`
}

// QualityMetrics reports provenance and parsing quality.
type QualityMetrics struct {
	VCFParsingSuccess bool    `json:"vcf_parsing_success"`
	GuidelineVersion  string  `json:"guideline_version"`
	LLMConfidence     float64 `json:"llm_confidence"`
}

// DrugErrorEntry replaces AnalyzeResponse in the per-drug array when that
// drug could not be assessed. The remaining drugs are still analyzed.
type DrugErrorEntry struct {
	PatientID string `json:"patient_id"`
	Drug      string `json:"drug"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
	Detail    string `json:"detail"`
}

// ErrorResponse is the whole-request error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	PatientID string `json:"patient_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// makeTimestamp formats the response timestamp as RFC 3339 UTC with a Z
// suffix.
func makeTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

// buildAnalyzeResponse assembles the documented response shape from the
// frozen assessment and its explanation.
func buildAnalyzeResponse(patientID, timestamp string, result *domain.RiskAssessmentResult, explanation *domain.Explanation) AnalyzeResponse {
	variants := result.DetectedVariants
	if variants == nil {
		variants = []domain.DetectedVariant{}
	}
	citations := explanation.VariantCitations
	if citations == nil {
		citations = []string{}
	}
	alternatives := result.AlternativeDrugs
	if alternatives == nil {
		alternatives = []string{}
	}

	return AnalyzeResponse{
		PatientID: patientID,
		Drug:      result.Drug,
		Timestamp: timestamp,
		RiskAssessment: RiskAssessment{
			RiskLabel:       string(result.RiskLabel),
			ConfidenceScore: result.ConfidenceScore,
			Severity:        string(result.Severity),
		},
		PharmacogenomicProfile: PharmacogenomicProfile{
			PrimaryGene:      result.Gene,
			Diplotype:        result.Diplotype.String(),
			Phenotype:        string(result.Phenotype),
			DetectedVariants: variants,
		},
		ClinicalRecommendation: ClinicalRecommendation{
			CPICGuideline:    result.CPICGuideline,
			DoseAdjustment:   result.DoseAdjustment,
			AlternativeDrugs: alternatives,
		},
		LLMGeneratedExplanation: LLMGeneratedExplanation{
			Summary:          explanation.Summary,
			Mechanism:        explanation.Mechanism,
			VariantCitations: citations,
		},
		QualityMetrics: QualityMetrics{
			VCFParsingSuccess: result.VCFParsingSuccess,
			GuidelineVersion:  result.GuidelineVersion,
			LLMConfidence:     explanation.ExplainerConfidence,
		},
	}
}
