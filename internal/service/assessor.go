package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
)

// Confidence derivation constants. Confidence is derived, never copied
// verbatim from the rule table: it drops as match specificity drops.
const (
	// phenotypePenalty is subtracted from confidence_base when the rule
	// matched only by phenotype category rather than exact genotype.
	phenotypePenalty = 0.10
	// fallbackConfidence is the pinned low value for fallback verdicts.
	fallbackConfidence = 0.40
)

// Assessor is the top-level entry point of the risk-resolution engine: it
// drives resolver -> phenotype mapper -> rule matcher, derives the confidence
// score, and emits the final frozen RiskAssessmentResult.
//
// Assess is pure given its inputs and the loaded knowledge base: identical
// inputs always yield an identical result. It performs no I/O and never
// invokes the explanation layer.
type Assessor struct {
	kb        *knowledge.KnowledgeBase
	resolver  *VariantResolver
	phenotype *PhenotypeMapper
	matcher   *RuleMatcher
	memo      *lru.Cache[string, domain.RiskAssessmentResult]
	logger    *logrus.Logger
}

// NewAssessor creates the orchestrator. memoSize > 0 enables memoization of
// assessment results; safe because assessment is pure.
func NewAssessor(kb *knowledge.KnowledgeBase, memoSize int, logger *logrus.Logger) (*Assessor, error) {
	a := &Assessor{
		kb:        kb,
		resolver:  NewVariantResolver(kb, logger),
		phenotype: NewPhenotypeMapper(kb, logger),
		matcher:   NewRuleMatcher(kb, logger),
		logger:    logger,
	}
	if memoSize > 0 {
		memo, err := lru.New[string, domain.RiskAssessmentResult](memoSize)
		if err != nil {
			return nil, fmt.Errorf("creating assessment memo cache: %w", err)
		}
		a.memo = memo
	}
	return a, nil
}

// Assess performs one deterministic risk assessment for a (gene, drug,
// variant set) tuple. parseOK records whether the upstream VCF extraction
// succeeded and is carried into the result's quality metrics.
//
// Unsupported drug or gene returns the corresponding request error; every
// other input combination produces a result, possibly with Unknown risk.
func (a *Assessor) Assess(gene, drug string, variants []domain.Variant, parseOK bool) (*domain.RiskAssessmentResult, error) {
	gene = strings.ToUpper(strings.TrimSpace(gene))
	drug = strings.ToUpper(strings.TrimSpace(drug))

	key := ""
	if a.memo != nil {
		key = memoKey(gene, drug, variants, parseOK)
		if cached, ok := a.memo.Get(key); ok {
			result := cached
			return &result, nil
		}
	}

	diplotype, cited := a.resolver.Resolve(gene, variants)
	phenotype := a.phenotype.PhenotypeFor(gene, diplotype)

	rule, err := a.matcher.Match(gene, drug, diplotype, phenotype, variants)
	if err != nil {
		return nil, err
	}

	result := &domain.RiskAssessmentResult{
		Gene:              gene,
		Drug:              drug,
		Diplotype:         diplotype,
		Phenotype:         phenotype,
		DetectedVariants:  toDetected(cited),
		RiskLabel:         rule.RiskLabel,
		Severity:          rule.Severity,
		ConfidenceScore:   deriveConfidence(rule),
		MatchType:         rule.MatchType,
		GuidelineVersion:  a.kb.GuidelineVersion(),
		CPICGuideline:     rule.CPICGuideline,
		DoseAdjustment:    rule.DoseAdjustment,
		AlternativeDrugs:  append([]string(nil), rule.AlternativeDrugs...),
		VCFParsingSuccess: parseOK,
	}

	a.logger.WithFields(result.LogFields()).Info("Risk assessment completed")

	if a.memo != nil {
		a.memo.Add(key, *result)
	}
	return result, nil
}

// DrugOutcome is one entry of a multi-drug assessment: either a result or a
// request error for that drug.
type DrugOutcome struct {
	Drug   string
	Result *domain.RiskAssessmentResult
	Err    error
}

// AssessAll evaluates one drug list against a per-gene variant index. Each
// drug is assessed independently against its primary gene; outcomes carry no
// ordering dependency, so callers may also fan out concurrently.
func (a *Assessor) AssessAll(geneVariants map[string][]domain.Variant, parseOK bool, drugs []string) []DrugOutcome {
	outcomes := make([]DrugOutcome, 0, len(drugs))
	for _, drug := range drugs {
		drug = strings.ToUpper(strings.TrimSpace(drug))

		gene, ok := a.kb.GeneForDrug(drug)
		if !ok {
			outcomes = append(outcomes, DrugOutcome{
				Drug: drug,
				Err:  &domain.UnsupportedDrugError{Drug: drug, Supported: a.kb.SupportedDrugs()},
			})
			continue
		}

		result, err := a.Assess(gene, drug, geneVariants[gene], parseOK)
		outcomes = append(outcomes, DrugOutcome{Drug: drug, Result: result, Err: err})
	}
	return outcomes
}

// SupportedDrugs exposes the knowledge base's drug set for the HTTP layer.
func (a *Assessor) SupportedDrugs() []string {
	return a.kb.SupportedDrugs()
}

// SupportedGenes exposes the knowledge base's gene set for the HTTP layer.
func (a *Assessor) SupportedGenes() []string {
	return a.kb.SupportedGenes()
}

// DrugGeneMap exposes the drug to primary-gene mapping for the HTTP layer.
func (a *Assessor) DrugGeneMap() map[string]string {
	return a.kb.DrugGeneMap()
}

// deriveConfidence implements the specificity ladder: full confidence_base
// for variant and diplotype matches, a fixed penalty for phenotype-only
// matches, and a pinned low value for fallback verdicts.
func deriveConfidence(rule *domain.RuleRecord) float64 {
	switch rule.MatchType {
	case domain.MatchVariant, domain.MatchDiplotype:
		return rule.ConfidenceBase
	case domain.MatchPhenotype:
		c := rule.ConfidenceBase - phenotypePenalty
		if c < 0 {
			return 0
		}
		return c
	default:
		return fallbackConfidence
	}
}

func toDetected(variants []domain.Variant) []domain.DetectedVariant {
	detected := make([]domain.DetectedVariant, 0, len(variants))
	for _, v := range variants {
		detected = append(detected, domain.DetectedVariant{
			RSID:       v.RSID,
			Chromosome: v.Chromosome,
			Position:   v.Position,
		})
	}
	return detected
}

// memoKey fingerprints an assessment input. Variant order must not affect the
// key, so entries are sorted before hashing.
func memoKey(gene, drug string, variants []domain.Variant, parseOK bool) string {
	entries := make([]string, 0, len(variants))
	for _, v := range variants {
		entries = append(entries, v.RSID+"="+domain.NormalizeGenotype(v.Genotype))
	}
	sort.Strings(entries)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%t|%s", gene, drug, parseOK, strings.Join(entries, ";"))
	return hex.EncodeToString(h.Sum(nil))
}
