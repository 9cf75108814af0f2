package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error categories surfaced to the HTTP layer
const (
	ErrCodeUnsupportedDrug  = "unsupported_drug"
	ErrCodeUnsupportedGene  = "unsupported_gene"
	ErrCodeInvalidVCF       = "invalid_vcf_format"
	ErrCodeInvalidDrugs     = "invalid_drugs"
	ErrCodeKnowledgeBase    = "knowledge_base_error"
	ErrCodeInternal         = "internal_error"
)

// LoadError reports a malformed or inconsistent knowledge base. It is fatal at
// startup: the service must never run against a partially-loaded table.
type LoadError struct {
	Source string // file the offending row came from
	Line   int    // 1-based line number, 0 when not row-specific
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("knowledge base load failed (%s line %d): %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("knowledge base load failed (%s): %s", e.Source, e.Reason)
}

// Unwrap supports errors.Is / errors.As chains.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a LoadError for a specific source row.
func NewLoadError(source string, line int, reason string, err error) *LoadError {
	return &LoadError{Source: source, Line: line, Reason: reason, Err: err}
}

// UnsupportedDrugError reports a request for a drug absent from the knowledge
// base. This is a request error (HTTP 4xx upstream), distinct from "analyzed
// but Unknown risk".
type UnsupportedDrugError struct {
	Drug      string
	Supported []string
}

// Error implements the error interface.
func (e *UnsupportedDrugError) Error() string {
	return fmt.Sprintf("drug %q is not supported", e.Drug)
}

// Detail returns the caller-facing description including the supported set.
func (e *UnsupportedDrugError) Detail() string {
	return fmt.Sprintf("Drug '%s' is not supported. Supported: %s",
		e.Drug, joinSorted(e.Supported))
}

// UnsupportedGeneError reports a request for a gene absent from the knowledge
// base.
type UnsupportedGeneError struct {
	Gene      string
	Supported []string
}

// Error implements the error interface.
func (e *UnsupportedGeneError) Error() string {
	return fmt.Sprintf("gene %q is not supported", e.Gene)
}

// Detail returns the caller-facing description including the supported set.
func (e *UnsupportedGeneError) Detail() string {
	return fmt.Sprintf("Gene '%s' is not supported. Supported: %s",
		e.Gene, joinSorted(e.Supported))
}

// IsRequestError reports whether err belongs to the request-level taxonomy
// that propagates to the caller unchanged.
func IsRequestError(err error) bool {
	var ud *UnsupportedDrugError
	var ug *UnsupportedGeneError
	return errors.As(err, &ud) || errors.As(err, &ug)
}

func joinSorted(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
