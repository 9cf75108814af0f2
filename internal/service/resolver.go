package service

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
)

// VariantResolver converts a gene's raw variant calls into named allele calls
// and a canonical diplotype.
type VariantResolver struct {
	kb     *knowledge.KnowledgeBase
	logger *logrus.Logger
}

// NewVariantResolver creates a resolver backed by the loaded knowledge base.
func NewVariantResolver(kb *knowledge.KnowledgeBase, logger *logrus.Logger) *VariantResolver {
	return &VariantResolver{kb: kb, logger: logger}
}

// alleleCall is one candidate allele implied by the observed variants.
type alleleCall struct {
	allele     string
	homozygous bool
	multiSite  bool     // defined by a multi-variant signature
	rsids      []string // defining rsids consumed by this call
	variants   []domain.Variant
}

// Resolve filters the incoming variants to those matching a defining signature
// for the gene and deterministically fills the two diplotype slots.
//
// Precedence: multi-variant signature matches outrank single-variant matches;
// ties within the same precedence break by allele collation order. A lone
// informative call gets the reference allele in the second slot (an unobserved
// site on a diploid genome is called reference). Zero informative variants
// yield the Unknown diplotype.
func (r *VariantResolver) Resolve(gene string, variants []domain.Variant) (domain.Diplotype, []domain.Variant) {
	gene = strings.ToUpper(gene)

	defs, ok := r.kb.AllelesFor(gene)
	if !ok {
		return domain.UnknownDiplotype(), nil
	}
	refAllele, _ := r.kb.ReferenceAllele(gene)

	byRSID := indexByRSID(variants)
	calls := r.collectCalls(defs, byRSID)

	if len(calls) == 0 {
		// Homozygous-reference calls at known defining sites are still
		// informative: they support the reference diplotype.
		if cited := referenceEvidence(defs, byRSID); len(cited) > 0 {
			return domain.NewDiplotype(refAllele, refAllele), cited
		}
		return domain.UnknownDiplotype(), nil
	}

	sortCalls(calls)
	calls = dropSubsumedCalls(calls)

	slot1, slot2, cited := fillSlots(calls, refAllele)

	diplotype := domain.NewDiplotype(slot1, slot2)
	r.logger.WithFields(logrus.Fields{
		"gene":      gene,
		"diplotype": diplotype.String(),
		"evidence":  len(cited),
	}).Debug("Resolved diplotype")

	return diplotype, cited
}

// collectCalls finds every allele definition whose full signature is present
// with a non-reference genotype.
func (r *VariantResolver) collectCalls(defs map[string]domain.AlleleDefinition, byRSID map[string]domain.Variant) []alleleCall {
	var calls []alleleCall
	for _, def := range defs {
		if def.IsReference() {
			continue
		}
		call, ok := matchSignature(def, byRSID)
		if ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// matchSignature checks whether every defining rsid of the allele is observed
// with a non-reference genotype. The call is homozygous only when all defining
// sites are homozygous-alt.
func matchSignature(def domain.AlleleDefinition, byRSID map[string]domain.Variant) (alleleCall, bool) {
	call := alleleCall{
		allele:     def.Name,
		homozygous: true,
		multiSite:  len(def.RSIDs) > 1,
		rsids:      def.RSIDs,
	}
	for _, rsid := range def.RSIDs {
		v, present := byRSID[rsid]
		if !present || v.IsHomRef() {
			return alleleCall{}, false
		}
		if !v.IsHomAlt() {
			call.homozygous = false
		}
		call.variants = append(call.variants, v)
	}
	return call, true
}

// referenceEvidence returns the variants that are homozygous-reference at
// defining sites of the gene's alleles.
func referenceEvidence(defs map[string]domain.AlleleDefinition, byRSID map[string]domain.Variant) []domain.Variant {
	seen := make(map[string]bool)
	var cited []domain.Variant
	for _, def := range defs {
		for _, rsid := range def.RSIDs {
			v, present := byRSID[rsid]
			if present && v.IsHomRef() && !seen[rsid] {
				seen[rsid] = true
				cited = append(cited, v)
			}
		}
	}
	sort.Slice(cited, func(i, j int) bool { return cited[i].RSID < cited[j].RSID })
	return cited
}

// sortCalls orders candidates: multi-variant signatures first, then allele
// collation order. This makes slot filling deterministic regardless of input
// variant order.
func sortCalls(calls []alleleCall) {
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].multiSite != calls[j].multiSite {
			return calls[i].multiSite
		}
		return domain.CompareAlleles(calls[i].allele, calls[j].allele) < 0
	})
}

// dropSubsumedCalls removes candidates whose defining sites were all consumed
// by an earlier, higher-precedence call. Without this a multi-variant
// haplotype (e.g. TPMT *3A = rs1800460+rs1142345) would double-count its
// component single-variant alleles (*3B, *3C).
func dropSubsumedCalls(calls []alleleCall) []alleleCall {
	used := make(map[string]bool)
	out := calls[:0]
	for _, call := range calls {
		subsumed := true
		for _, rsid := range call.rsids {
			if !used[rsid] {
				subsumed = false
				break
			}
		}
		if subsumed {
			continue
		}
		for _, rsid := range call.rsids {
			used[rsid] = true
		}
		out = append(out, call)
	}
	return out
}

// fillSlots picks exactly two allele slots from the ordered candidates and
// collects the contributing variants for citation.
func fillSlots(calls []alleleCall, refAllele string) (string, string, []domain.Variant) {
	first := calls[0]
	cited := append([]domain.Variant(nil), first.variants...)

	if first.homozygous {
		return first.allele, first.allele, dedupVariants(cited)
	}

	// Heterozygous lead call: the second slot comes from the next candidate,
	// defaulting to the reference allele when no other variant allele is seen.
	if len(calls) > 1 {
		second := calls[1]
		cited = append(cited, second.variants...)
		return first.allele, second.allele, dedupVariants(cited)
	}
	return first.allele, refAllele, dedupVariants(cited)
}

func indexByRSID(variants []domain.Variant) map[string]domain.Variant {
	byRSID := make(map[string]domain.Variant, len(variants))
	for _, v := range variants {
		// First record wins; duplicate rsids in one upload are ignored.
		if _, exists := byRSID[v.RSID]; !exists {
			byRSID[v.RSID] = v
		}
	}
	return byRSID
}

func dedupVariants(variants []domain.Variant) []domain.Variant {
	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if !seen[v.RSID] {
			seen[v.RSID] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RSID < out[j].RSID })
	return out
}
