package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
)

// PhenotypeMapper converts a diplotype into a metabolizer-phenotype category
// using per-allele activity scores and gene-specific thresholds. Thresholds
// and activity values are static knowledge-base data, so adding a gene
// requires only data, not logic changes.
type PhenotypeMapper struct {
	kb     *knowledge.KnowledgeBase
	logger *logrus.Logger
}

// NewPhenotypeMapper creates a mapper backed by the loaded knowledge base.
func NewPhenotypeMapper(kb *knowledge.KnowledgeBase, logger *logrus.Logger) *PhenotypeMapper {
	return &PhenotypeMapper{kb: kb, logger: logger}
}

// PhenotypeFor sums the activity values of both alleles and buckets the total
// against the gene's thresholds. If either allele is Unknown or absent from
// the allele table the phenotype is Unknown - never guessed.
func (m *PhenotypeMapper) PhenotypeFor(gene string, diplotype domain.Diplotype) domain.Phenotype {
	gene = strings.ToUpper(gene)

	if diplotype.IsUnknown() {
		return domain.PhenotypeUnknown
	}

	defs, ok := m.kb.AllelesFor(gene)
	if !ok {
		return domain.PhenotypeUnknown
	}
	bands, ok := m.kb.ThresholdsFor(gene)
	if !ok {
		return domain.PhenotypeUnknown
	}

	var score float64
	for _, allele := range diplotype.Alleles() {
		def, ok := defs[allele]
		if !ok || def.Function == domain.FunctionUnknown {
			return domain.PhenotypeUnknown
		}
		score += def.Activity
	}

	for _, band := range bands {
		if score >= band.Min && score <= band.Max {
			m.logger.WithFields(logrus.Fields{
				"gene":      gene,
				"diplotype": diplotype.String(),
				"score":     score,
				"phenotype": band.Phenotype.String(),
			}).Debug("Mapped diplotype to phenotype")
			return band.Phenotype
		}
	}

	// A score outside every configured band is a data gap, not an error.
	m.logger.WithFields(logrus.Fields{
		"gene":  gene,
		"score": score,
	}).Warn("Activity score outside configured threshold bands")
	return domain.PhenotypeUnknown
}
