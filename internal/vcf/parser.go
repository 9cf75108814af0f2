// Package vcf extracts pharmacogenomic variant records from uploaded VCF
// content. It is the engine's upstream collaborator: everything downstream of
// it works with already-extracted domain.Variant values.
package vcf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// ParseResult carries the extracted variants for one uploaded file.
type ParseResult struct {
	PatientID    string
	Variants     []domain.Variant
	GeneVariants map[string][]domain.Variant
	Warnings     []string
	Success      bool
}

// Parser extracts variants whose INFO GENE tag names a supported
// pharmacogene; everything else is skipped with a warning.
type Parser struct {
	supportedGenes map[string]bool
	logger         *logrus.Logger
}

// NewParser creates a parser restricted to the given gene set.
func NewParser(supportedGenes []string, logger *logrus.Logger) *Parser {
	genes := make(map[string]bool, len(supportedGenes))
	for _, g := range supportedGenes {
		genes[strings.ToUpper(g)] = true
	}
	return &Parser{supportedGenes: genes, logger: logger}
}

// ValidateHeader checks that the content starts with a VCF fileformat line
// and contains a #CHROM column header.
func ValidateHeader(content string) error {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return fmt.Errorf("empty file")
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "##fileformat=VCF") {
		if len(first) > 50 {
			first = first[:50]
		}
		return fmt.Errorf("invalid VCF header: first line must start with '##fileformat=VCF', got: %s", first)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "#CHROM") {
			return nil
		}
	}
	return fmt.Errorf("missing #CHROM header line in VCF file")
}

// Parse extracts supported-gene variants from VCF content. Header validation
// failure marks the result unsuccessful; record-level problems are reported
// as warnings and skipped, not fatal.
func (p *Parser) Parse(content, patientID string) *ParseResult {
	result := &ParseResult{
		PatientID:    patientID,
		GeneVariants: make(map[string][]domain.Variant),
		Success:      true,
	}

	if err := ValidateHeader(content); err != nil {
		result.Success = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("VCF validation failed: %v", err))
		return result
	}

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		variant, warning, ok := p.parseRecord(line)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		if !ok {
			continue
		}

		result.Variants = append(result.Variants, variant)
		result.GeneVariants[variant.Gene] = append(result.GeneVariants[variant.Gene], variant)
	}

	p.logger.WithFields(logrus.Fields{
		"patient_id": patientID,
		"variants":   len(result.Variants),
		"genes":      len(result.GeneVariants),
		"warnings":   len(result.Warnings),
	}).Info("VCF parsed")

	return result
}

// parseRecord parses one data line. Returns ok=false for records that do not
// contribute a supported-gene variant.
func (p *Parser) parseRecord(line string) (domain.Variant, string, bool) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) < 8 {
		return domain.Variant{}, "", false
	}

	chrom, pos, _, ref, alt, qual, _, infoStr := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6], parts[7]

	info := parseInfo(infoStr)
	gene := strings.ToUpper(info["GENE"])
	if gene == "" {
		return domain.Variant{}, "", false
	}
	if !p.supportedGenes[gene] {
		return domain.Variant{}, fmt.Sprintf("Skipping unsupported gene: %s", gene), false
	}

	genotype := "0/0"
	if len(parts) >= 10 {
		if gt, ok := extractGenotype(parts[8], parts[9]); ok {
			genotype = gt
		}
	}

	position, err := strconv.ParseInt(pos, 10, 64)
	if err != nil {
		position = 0
	}

	rsid := info["RS"]
	if rsid == "" {
		rsid = chrom + ":" + pos
	}

	variant := domain.Variant{
		RSID:       rsid,
		Chromosome: chrom,
		Position:   position,
		Reference:  ref,
		Alternate:  alt,
		Genotype:   domain.NormalizeGenotype(genotype),
		Gene:       gene,
		StarAllele: info["STAR"],
	}
	if q, err := strconv.ParseFloat(qual, 64); err == nil && qual != "." {
		variant.Quality = &q
	}
	return variant, "", true
}

// parseInfo splits a semicolon-delimited INFO field into key/value pairs;
// flag entries map to an empty value.
func parseInfo(infoStr string) map[string]string {
	info := make(map[string]string)
	for _, item := range strings.Split(infoStr, ";") {
		if k, v, found := strings.Cut(item, "="); found {
			info[k] = v
		} else if item != "" {
			info[item] = ""
		}
	}
	return info
}

// extractGenotype pulls the GT value out of the FORMAT/sample columns.
func extractGenotype(format, sample string) (string, bool) {
	fmtFields := strings.Split(format, ":")
	sampleFields := strings.Split(sample, ":")
	for i, f := range fmtFields {
		if f == "GT" && i < len(sampleFields) {
			return sampleFields[i], true
		}
	}
	return "", false
}
