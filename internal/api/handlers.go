package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/vcf"
)

// handleHealth reports service liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "PharmaGuard Genomics API",
		"version":   "1.0.0",
		"timestamp": makeTimestamp(),
	})
}

// handleSupportedDrugs lists the drugs the knowledge base can assess.
func (s *Server) handleSupportedDrugs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported_drugs": s.assessor.SupportedDrugs(),
		"drug_gene_map":   s.assessor.DrugGeneMap(),
	})
}

// handleSupportedGenes lists the pharmacogenes the knowledge base covers.
func (s *Server) handleSupportedGenes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported_genes": s.assessor.SupportedGenes(),
	})
}

// handleAnalyze runs the full pipeline for one uploaded VCF and a drug list.
// The response is a per-drug array; an unsupported drug or gene produces an
// error entry for that drug while the rest are still assessed.
func (s *Server) handleAnalyze(c *gin.Context) {
	patientID := strings.TrimSpace(c.PostForm("patient_id"))
	if patientID == "" {
		patientID = "PATIENT_" + strings.ToUpper(uuid.NewString()[:6])
	}

	drugList := splitDrugs(c.PostForm("drugs"))
	if len(drugList) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     domain.ErrCodeInvalidDrugs,
			Detail:    "No valid drug names provided",
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		})
		return
	}

	content, errResp := s.readUpload(c, patientID)
	if errResp != nil {
		c.JSON(http.StatusUnprocessableEntity, errResp)
		return
	}

	if err := vcf.ValidateHeader(content); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:     domain.ErrCodeInvalidVCF,
			Detail:    err.Error(),
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		})
		return
	}

	parseResult := s.parser.Parse(content, patientID)
	timestamp := makeTimestamp()
	outcomes := s.assessor.AssessAll(parseResult.GeneVariants, parseResult.Success, drugList)

	results := make([]any, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			results = append(results, s.drugError(c, patientID, timestamp, outcome.Drug, outcome.Err))
			continue
		}

		explanation := s.explainer.Explain(c.Request.Context(), outcome.Result)
		results = append(results, buildAnalyzeResponse(patientID, timestamp, outcome.Result, explanation))

		s.recordAudit(c, patientID, outcome.Result)
	}

	c.JSON(http.StatusOK, results)
}

// handlePatientHistory returns the audit trail for one patient.
func (s *Server) handlePatientHistory(c *gin.Context) {
	patientID := c.Param("patient_id")

	records, err := s.store.ByPatient(c.Request.Context(), patientID)
	if err != nil {
		s.logger.WithError(err).Error("Audit lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     domain.ErrCodeInternal,
			Detail:    "Could not read assessment history",
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		})
		return
	}
	if records == nil {
		records = []domain.AssessmentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id":  patientID,
		"assessments": records,
	})
}

// drugError maps an assessment error to the per-drug error entry.
func (s *Server) drugError(c *gin.Context, patientID, timestamp, drug string, err error) DrugErrorEntry {
	entry := DrugErrorEntry{
		PatientID: patientID,
		Drug:      drug,
		Timestamp: timestamp,
	}

	var drugErr *domain.UnsupportedDrugError
	var geneErr *domain.UnsupportedGeneError
	switch {
	case errors.As(err, &drugErr):
		entry.Error = domain.ErrCodeUnsupportedDrug
		entry.Detail = drugErr.Detail()
	case errors.As(err, &geneErr):
		entry.Error = domain.ErrCodeUnsupportedGene
		entry.Detail = geneErr.Detail()
	default:
		s.logger.WithError(err).WithField("drug", drug).Error("Assessment failed")
		entry.Error = domain.ErrCodeInternal
		entry.Detail = "Assessment failed for this drug"
	}
	return entry
}

// readUpload extracts the vcf_file form file as text. Transcoding errors are
// reported in the original service's error vocabulary.
func (s *Server) readUpload(c *gin.Context, patientID string) (string, *ErrorResponse) {
	file, _, err := c.Request.FormFile("vcf_file")
	if err != nil {
		return "", &ErrorResponse{
			Error:     "file_read_error",
			Detail:    "Could not read uploaded file: missing vcf_file field",
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		return "", &ErrorResponse{
			Error:     "file_read_error",
			Detail:    "Could not read uploaded file: " + err.Error(),
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		}
	}
	if int64(len(data)) > s.maxUploadBytes {
		return "", &ErrorResponse{
			Error:     "file_too_large",
			Detail:    "VCF file exceeds the upload size limit",
			PatientID: patientID,
			Timestamp: makeTimestamp(),
		}
	}
	return string(data), nil
}

// recordAudit persists the assessment without blocking the response path.
func (s *Server) recordAudit(c *gin.Context, patientID string, result *domain.RiskAssessmentResult) {
	record := &domain.AssessmentRecord{
		PatientID: patientID,
		RequestID: c.GetString("request_id"),
		Result:    *result,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(c.Request.Context(), record); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"patient_id": patientID,
			"drug":       result.Drug,
		}).Warn("Audit write failed")
	}
}

// splitDrugs parses the comma-separated drugs form field.
func splitDrugs(raw string) []string {
	var drugs []string
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			drugs = append(drugs, strings.ToUpper(d))
		}
	}
	return drugs
}
