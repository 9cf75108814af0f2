package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
)

// RuleMatcher selects the single applicable outcome record for a
// (gene, drug, diplotype, phenotype, variant set) tuple.
//
// The precedence contract is fixed, highest first:
//  1. special-case variant match (rsid+genotype signature present in the
//     variant set) - override cases such as a single highly penetrant
//     toxicity variant,
//  2. exact canonical-diplotype match,
//  3. phenotype match,
//  4. the designated fallback record, guaranteed to exist at load time.
//
// Within one precedence tier the rule list's match_priority order decides.
type RuleMatcher struct {
	kb     *knowledge.KnowledgeBase
	logger *logrus.Logger
}

// NewRuleMatcher creates a matcher backed by the loaded knowledge base.
func NewRuleMatcher(kb *knowledge.KnowledgeBase, logger *logrus.Logger) *RuleMatcher {
	return &RuleMatcher{kb: kb, logger: logger}
}

// Match returns the first satisfied record in precedence order. An unknown
// drug fails with UnsupportedDrugError and a known drug whose gene does not
// match the knowledge base fails with UnsupportedGeneError; both are request
// errors, not clinical unknowns.
func (m *RuleMatcher) Match(
	gene, drug string,
	diplotype domain.Diplotype,
	phenotype domain.Phenotype,
	variants []domain.Variant,
) (*domain.RuleRecord, error) {
	gene = strings.ToUpper(gene)
	drug = strings.ToUpper(drug)

	if _, ok := m.kb.GeneForDrug(drug); !ok {
		return nil, &domain.UnsupportedDrugError{Drug: drug, Supported: m.kb.SupportedDrugs()}
	}
	rules, ok := m.kb.RulesFor(gene, drug)
	if !ok {
		return nil, &domain.UnsupportedGeneError{Gene: gene, Supported: m.kb.SupportedGenes()}
	}

	genotypes := genotypesByRSID(variants)

	for _, tier := range []domain.MatchType{domain.MatchVariant, domain.MatchDiplotype, domain.MatchPhenotype} {
		for i := range rules {
			rule := &rules[i]
			if rule.MatchType != tier {
				continue
			}
			if m.satisfied(rule, diplotype, phenotype, genotypes) {
				m.logger.WithFields(logrus.Fields{
					"gene":       gene,
					"drug":       drug,
					"match_type": rule.MatchType.String(),
					"match_key":  rule.MatchKey,
					"risk_label": rule.RiskLabel.String(),
				}).Debug("Rule matched")
				return rule, nil
			}
		}
	}

	for i := range rules {
		if rules[i].MatchType == domain.MatchFallback {
			m.logger.WithFields(logrus.Fields{
				"gene": gene,
				"drug": drug,
			}).Debug("No specific rule matched, using fallback")
			return &rules[i], nil
		}
	}

	// Unreachable for a validly loaded knowledge base: the loader rejects
	// (gene, drug) groups without a fallback record.
	return nil, &domain.UnsupportedGeneError{Gene: gene, Supported: m.kb.SupportedGenes()}
}

func (m *RuleMatcher) satisfied(
	rule *domain.RuleRecord,
	diplotype domain.Diplotype,
	phenotype domain.Phenotype,
	genotypes map[string]string,
) bool {
	switch rule.MatchType {
	case domain.MatchVariant:
		rsid, wantGT, ok := splitVariantKey(rule.MatchKey)
		if !ok {
			return false
		}
		gt, present := genotypes[rsid]
		return present && gt == domain.NormalizeGenotype(wantGT)
	case domain.MatchDiplotype:
		return !diplotype.IsUnknown() && rule.MatchKey == diplotype.String()
	case domain.MatchPhenotype:
		return phenotype != domain.PhenotypeUnknown && domain.Phenotype(rule.MatchKey) == phenotype
	default:
		return false
	}
}

// splitVariantKey parses a special-case key of the form "rsid:genotype".
func splitVariantKey(key string) (rsid, genotype string, ok bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

func genotypesByRSID(variants []domain.Variant) map[string]string {
	genotypes := make(map[string]string, len(variants))
	for _, v := range variants {
		if _, exists := genotypes[v.RSID]; !exists {
			genotypes[v.RSID] = domain.NormalizeGenotype(v.Genotype)
		}
	}
	return genotypes
}
