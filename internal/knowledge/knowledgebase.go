// Package knowledge loads and indexes the versioned pharmacogenomic knowledge
// base: the CPIC-aligned rule table, the star-allele definitions, and the
// per-gene activity-score thresholds.
//
// Loading is all-or-nothing. A malformed row invalidates the entire load
// rather than being skipped, because a partially-loaded knowledge base is a
// clinical-safety hazard. After a successful load the KnowledgeBase is
// immutable and safe for unlimited concurrent readers.
package knowledge

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// ThresholdBand maps an inclusive activity-score interval to a phenotype.
type ThresholdBand struct {
	Phenotype domain.Phenotype
	Min       float64
	Max       float64
}

// KnowledgeBase holds the indexed, read-only rule and allele tables.
type KnowledgeBase struct {
	rules      map[string]map[string][]domain.RuleRecord  // gene -> drug -> rules sorted by priority
	alleles    map[string]map[string]domain.AlleleDefinition // gene -> allele name -> definition
	reference  map[string]string                          // gene -> reference allele name
	thresholds map[string][]ThresholdBand                 // gene -> bands
	drugGene   map[string]string                          // drug -> primary gene
	version    string
}

// Load parses the three tabular sources into an indexed KnowledgeBase.
// Any inconsistency fails the whole load with *domain.LoadError.
func Load(cfg domain.KnowledgeConfig, logger *logrus.Logger) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		rules:      make(map[string]map[string][]domain.RuleRecord),
		alleles:    make(map[string]map[string]domain.AlleleDefinition),
		reference:  make(map[string]string),
		thresholds: make(map[string][]ThresholdBand),
		drugGene:   make(map[string]string),
	}

	if err := kb.loadAlleles(cfg.AllelesPath); err != nil {
		return nil, err
	}
	if err := kb.loadThresholds(cfg.ThresholdsPath); err != nil {
		return nil, err
	}
	if err := kb.loadRules(cfg.RulesPath); err != nil {
		return nil, err
	}
	if err := kb.validate(cfg.RulesPath); err != nil {
		return nil, err
	}

	ruleCount := 0
	for _, drugs := range kb.rules {
		for _, rules := range drugs {
			ruleCount += len(rules)
		}
	}
	logger.WithFields(logrus.Fields{
		"rules":             ruleCount,
		"genes":             len(kb.alleles),
		"drugs":             len(kb.drugGene),
		"guideline_version": kb.version,
	}).Info("Knowledge base loaded")

	return kb, nil
}

// RulesFor returns the priority-ordered rule list for a (gene, drug) pair.
// Gene and drug are matched case-insensitively.
func (kb *KnowledgeBase) RulesFor(gene, drug string) ([]domain.RuleRecord, bool) {
	drugs, ok := kb.rules[strings.ToUpper(gene)]
	if !ok {
		return nil, false
	}
	rules, ok := drugs[strings.ToUpper(drug)]
	return rules, ok
}

// AllelesFor returns the allele-definition mapping for a gene.
func (kb *KnowledgeBase) AllelesFor(gene string) (map[string]domain.AlleleDefinition, bool) {
	defs, ok := kb.alleles[strings.ToUpper(gene)]
	return defs, ok
}

// ReferenceAllele returns the gene's reference (wild-type) allele name.
func (kb *KnowledgeBase) ReferenceAllele(gene string) (string, bool) {
	ref, ok := kb.reference[strings.ToUpper(gene)]
	return ref, ok
}

// ThresholdsFor returns the activity-score bands for a gene.
func (kb *KnowledgeBase) ThresholdsFor(gene string) ([]ThresholdBand, bool) {
	bands, ok := kb.thresholds[strings.ToUpper(gene)]
	return bands, ok
}

// GeneForDrug returns the primary pharmacogene governing a drug.
func (kb *KnowledgeBase) GeneForDrug(drug string) (string, bool) {
	gene, ok := kb.drugGene[strings.ToUpper(drug)]
	return gene, ok
}

// SupportedDrugs returns the sorted set of drugs present in the rule table.
func (kb *KnowledgeBase) SupportedDrugs() []string {
	drugs := make([]string, 0, len(kb.drugGene))
	for d := range kb.drugGene {
		drugs = append(drugs, d)
	}
	sort.Strings(drugs)
	return drugs
}

// SupportedGenes returns the sorted set of genes present in the allele table.
func (kb *KnowledgeBase) SupportedGenes() []string {
	genes := make([]string, 0, len(kb.alleles))
	for g := range kb.alleles {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// DrugGeneMap returns a copy of the drug to primary-gene mapping.
func (kb *KnowledgeBase) DrugGeneMap() map[string]string {
	out := make(map[string]string, len(kb.drugGene))
	for d, g := range kb.drugGene {
		out[d] = g
	}
	return out
}

// GuidelineVersion returns the version string attached to the loaded table.
func (kb *KnowledgeBase) GuidelineVersion() string {
	return kb.version
}

// loadAlleles reads the allele-definition table.
// Columns: gene, allele, rsids (| delimited, empty for reference), function, activity.
func (kb *KnowledgeBase) loadAlleles(path string) error {
	rows, err := readCSV(path, []string{"gene", "allele", "rsids", "function", "activity"})
	if err != nil {
		return err
	}

	for _, row := range rows {
		gene := strings.ToUpper(row.get("gene"))
		name := row.get("allele")
		if gene == "" || name == "" {
			return domain.NewLoadError(path, row.line, "gene and allele are required", nil)
		}

		fn := domain.FunctionTier(row.get("function"))
		if !fn.IsValid() {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("unrecognized function tier %q", row.get("function")), domain.ErrInvalidFunction)
		}

		activity, err := strconv.ParseFloat(row.get("activity"), 64)
		if err != nil {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("non-numeric activity %q", row.get("activity")), err)
		}

		var rsids []string
		if raw := row.get("rsids"); raw != "" {
			rsids = strings.Split(raw, "|")
		}

		def := domain.AlleleDefinition{
			Gene:     gene,
			Name:     name,
			RSIDs:    rsids,
			Function: fn,
			Activity: activity,
		}

		if kb.alleles[gene] == nil {
			kb.alleles[gene] = make(map[string]domain.AlleleDefinition)
		}
		if _, dup := kb.alleles[gene][name]; dup {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("duplicate allele %s for gene %s", name, gene), nil)
		}
		kb.alleles[gene][name] = def

		if def.IsReference() {
			if existing, ok := kb.reference[gene]; ok {
				return domain.NewLoadError(path, row.line,
					fmt.Sprintf("gene %s has multiple reference alleles (%s, %s)", gene, existing, name), nil)
			}
			kb.reference[gene] = name
		}
	}

	for gene := range kb.alleles {
		if _, ok := kb.reference[gene]; !ok {
			return domain.NewLoadError(path, 0,
				fmt.Sprintf("gene %s has no reference allele", gene), nil)
		}
	}
	return nil
}

// loadThresholds reads the per-gene activity-score bands.
// Columns: gene, phenotype, min_score, max_score.
func (kb *KnowledgeBase) loadThresholds(path string) error {
	rows, err := readCSV(path, []string{"gene", "phenotype", "min_score", "max_score"})
	if err != nil {
		return err
	}

	for _, row := range rows {
		gene := strings.ToUpper(row.get("gene"))
		pheno := domain.Phenotype(row.get("phenotype"))
		if !pheno.IsValid() || pheno == domain.PhenotypeUnknown {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("unrecognized phenotype %q", row.get("phenotype")), domain.ErrInvalidPhenotype)
		}
		min, err := strconv.ParseFloat(row.get("min_score"), 64)
		if err != nil {
			return domain.NewLoadError(path, row.line, "non-numeric min_score", err)
		}
		max, err := strconv.ParseFloat(row.get("max_score"), 64)
		if err != nil {
			return domain.NewLoadError(path, row.line, "non-numeric max_score", err)
		}
		if max < min {
			return domain.NewLoadError(path, row.line, "max_score below min_score", nil)
		}
		kb.thresholds[gene] = append(kb.thresholds[gene], ThresholdBand{
			Phenotype: pheno,
			Min:       min,
			Max:       max,
		})
	}

	for gene := range kb.thresholds {
		bands := kb.thresholds[gene]
		sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })
		kb.thresholds[gene] = bands
	}
	return nil
}

// loadRules reads the rule table.
// Columns per the knowledge-base source contract: gene, drug, match_type,
// match_key, match_priority, risk_label, severity, confidence_base,
// cpic_guideline, dose_adjustment, alternative_drugs, guideline_version.
func (kb *KnowledgeBase) loadRules(path string) error {
	rows, err := readCSV(path, []string{
		"gene", "drug", "match_type", "match_key", "match_priority",
		"risk_label", "severity", "confidence_base", "cpic_guideline",
		"dose_adjustment", "alternative_drugs", "guideline_version",
	})
	if err != nil {
		return err
	}

	seenPriorities := make(map[string]map[int]bool)

	for _, row := range rows {
		priority, err := strconv.Atoi(row.get("match_priority"))
		if err != nil {
			return domain.NewLoadError(path, row.line, "non-numeric match_priority", err)
		}
		confidence, err := strconv.ParseFloat(row.get("confidence_base"), 64)
		if err != nil {
			return domain.NewLoadError(path, row.line, "non-numeric confidence_base", err)
		}

		var alternatives []string
		if raw := row.get("alternative_drugs"); raw != "" {
			for _, alt := range strings.Split(raw, "|") {
				if alt = strings.TrimSpace(alt); alt != "" && !strings.EqualFold(alt, "none") {
					alternatives = append(alternatives, alt)
				}
			}
		}

		record := domain.RuleRecord{
			Gene:             strings.ToUpper(row.get("gene")),
			Drug:             strings.ToUpper(row.get("drug")),
			MatchType:        domain.MatchType(row.get("match_type")),
			MatchKey:         row.get("match_key"),
			MatchPriority:    priority,
			RiskLabel:        domain.RiskLabel(row.get("risk_label")),
			Severity:         domain.Severity(row.get("severity")),
			ConfidenceBase:   confidence,
			CPICGuideline:    row.get("cpic_guideline"),
			DoseAdjustment:   row.get("dose_adjustment"),
			AlternativeDrugs: alternatives,
			GuidelineVersion: row.get("guideline_version"),
		}

		if err := record.Validate(); err != nil {
			return domain.NewLoadError(path, row.line, err.Error(), err)
		}

		// The table is versioned as a whole; mixed versions mean a bad merge.
		if kb.version == "" {
			kb.version = record.GuidelineVersion
		} else if record.GuidelineVersion != kb.version {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("guideline_version %q conflicts with %q", record.GuidelineVersion, kb.version), nil)
		}

		group := record.Gene + "/" + record.Drug
		if seenPriorities[group] == nil {
			seenPriorities[group] = make(map[int]bool)
		}
		if seenPriorities[group][priority] {
			return domain.NewLoadError(path, row.line,
				fmt.Sprintf("duplicate match_priority %d for %s", priority, group), nil)
		}
		seenPriorities[group][priority] = true

		if kb.rules[record.Gene] == nil {
			kb.rules[record.Gene] = make(map[string][]domain.RuleRecord)
		}
		kb.rules[record.Gene][record.Drug] = append(kb.rules[record.Gene][record.Drug], record)
		kb.drugGene[record.Drug] = record.Gene
	}

	for _, drugs := range kb.rules {
		for drug := range drugs {
			rules := drugs[drug]
			sort.Slice(rules, func(i, j int) bool {
				return rules[i].MatchPriority < rules[j].MatchPriority
			})
			drugs[drug] = rules
		}
	}
	return nil
}

// validate runs the cross-table consistency checks that make the matcher's
// precedence contract total.
func (kb *KnowledgeBase) validate(rulesPath string) error {
	for gene, drugs := range kb.rules {
		defs, ok := kb.alleles[gene]
		if !ok {
			return domain.NewLoadError(rulesPath, 0,
				fmt.Sprintf("rules reference gene %s with no allele definitions", gene), nil)
		}
		if _, ok := kb.thresholds[gene]; !ok {
			return domain.NewLoadError(rulesPath, 0,
				fmt.Sprintf("rules reference gene %s with no activity thresholds", gene), nil)
		}

		for drug, rules := range drugs {
			hasFallback := false
			for _, rule := range rules {
				switch rule.MatchType {
				case domain.MatchFallback:
					if hasFallback {
						return domain.NewLoadError(rulesPath, 0,
							fmt.Sprintf("multiple fallback rules for %s/%s", gene, drug), nil)
					}
					hasFallback = true
				case domain.MatchDiplotype:
					if err := kb.validateDiplotypeKey(rulesPath, gene, defs, rule.MatchKey); err != nil {
						return err
					}
				case domain.MatchPhenotype:
					p := domain.Phenotype(rule.MatchKey)
					if !p.IsValid() {
						return domain.NewLoadError(rulesPath, 0,
							fmt.Sprintf("rule for %s/%s has unrecognized phenotype key %q", gene, drug, rule.MatchKey), nil)
					}
				case domain.MatchVariant:
					if !strings.Contains(rule.MatchKey, ":") {
						return domain.NewLoadError(rulesPath, 0,
							fmt.Sprintf("rule for %s/%s has malformed variant key %q (want rsid:genotype)", gene, drug, rule.MatchKey), nil)
					}
				}
			}
			if !hasFallback {
				return domain.NewLoadError(rulesPath, 0,
					fmt.Sprintf("missing fallback rule for %s/%s", gene, drug), nil)
			}
		}
	}
	return nil
}

func (kb *KnowledgeBase) validateDiplotypeKey(rulesPath, gene string, defs map[string]domain.AlleleDefinition, key string) error {
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return domain.NewLoadError(rulesPath, 0,
			fmt.Sprintf("malformed diplotype key %q for gene %s", key, gene), nil)
	}
	for _, allele := range parts {
		if _, ok := defs[allele]; !ok {
			return domain.NewLoadError(rulesPath, 0,
				fmt.Sprintf("diplotype key %q references undefined allele %q for gene %s", key, allele, gene), nil)
		}
	}
	canonical := domain.NewDiplotype(parts[0], parts[1]).String()
	if canonical != key {
		return domain.NewLoadError(rulesPath, 0,
			fmt.Sprintf("diplotype key %q for gene %s is not in canonical order (want %q)", key, gene, canonical), nil)
	}
	return nil
}

// csvRow is one parsed record with access by column name.
type csvRow struct {
	line   int
	fields map[string]string
}

func (r csvRow) get(col string) string {
	return strings.TrimSpace(r.fields[col])
}

// readCSV parses the file and verifies all required columns are present.
func readCSV(path string, required []string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewLoadError(path, 0, "cannot open source", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, domain.NewLoadError(path, 0, "cannot read header", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, domain.NewLoadError(path, 1, fmt.Sprintf("missing required column %q", col), nil)
		}
	}

	var rows []csvRow
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.NewLoadError(path, line, "malformed row", err)
		}
		fields := make(map[string]string, len(required))
		for col, i := range index {
			if i < len(record) {
				fields[col] = record[i]
			}
		}
		rows = append(rows, csvRow{line: line, fields: fields})
	}
	return rows, nil
}
