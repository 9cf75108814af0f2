package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivendra2129/-PharmaGuard/internal/audit"
	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
	"github.com/Shivendra2129/-PharmaGuard/internal/explain"
	"github.com/Shivendra2129/-PharmaGuard/internal/knowledge"
	"github.com/Shivendra2129/-PharmaGuard/internal/service"
	"github.com/Shivendra2129/-PharmaGuard/internal/vcf"
)

const pmCodeineVCF = `##fileformat=VCFv4.2
##source=PharmacoScanner
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	SAMPLE
22	42130692	rs3892097	G	A	99	PASS	GENE=CYP2D6;STAR=*4;RS=rs3892097	GT	1/1
`

type memoryStore struct {
	mu      sync.Mutex
	records []domain.AssessmentRecord
}

func (m *memoryStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryStore) Recent(ctx context.Context, limit int) ([]domain.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]domain.AssessmentRecord, limit)
	copy(out, m.records[len(m.records)-limit:])
	return out, nil
}

func (m *memoryStore) ByPatient(ctx context.Context, patientID string) ([]domain.AssessmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AssessmentRecord
	for _, rec := range m.records {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }

type failingStore struct{ audit.NopStore }

func (failingStore) ByPatient(context.Context, string) ([]domain.AssessmentRecord, error) {
	return nil, assert.AnError
}

var (
	kbOnce sync.Once
	kbInst *knowledge.KnowledgeBase
	kbErr  error
)

func loadKB(t *testing.T, logger *logrus.Logger) *knowledge.KnowledgeBase {
	t.Helper()

	kbOnce.Do(func() {
		kbInst, kbErr = knowledge.Load(domain.KnowledgeConfig{
			RulesPath:      filepath.Join("..", "..", "data", "pharmacogenomic_rules.csv"),
			AllelesPath:    filepath.Join("..", "..", "data", "allele_definitions.csv"),
			ThresholdsPath: filepath.Join("..", "..", "data", "activity_thresholds.csv"),
		}, logger)
	})
	require.NoError(t, kbErr)
	return kbInst
}

func testServer(t *testing.T, store audit.Store) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	kb := loadKB(t, logger)

	assessor, err := service.NewAssessor(kb, 128, logger)
	require.NoError(t, err)

	if store == nil {
		store = audit.NopStore{}
	}

	return NewServer(
		domain.ServerConfig{
			MaxUploadBytes: 1 << 20,
			CORSOrigins:    []string{"*"},
		},
		assessor,
		vcf.NewParser(kb.SupportedGenes(), logger),
		explain.NewService(nil, nil, logger),
		store,
		logger,
	)
}

// analyzeRequest builds the multipart form the analyze endpoint expects.
func analyzeRequest(t *testing.T, vcfContent, drugs, patientID string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("vcf_file", "sample.vcf")
	require.NoError(t, err)
	_, err = part.Write([]byte(vcfContent))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("drugs", drugs))
	if patientID != "" {
		require.NoError(t, writer.WriteField("patient_id", patientID))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doJSON(t *testing.T, s *Server, req *http.Request, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, nil)

	var body map[string]any
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/health", nil), &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "PharmaGuard Genomics API", body["service"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSupportedDrugsEndpoint(t *testing.T) {
	s := testServer(t, nil)

	var body struct {
		SupportedDrugs []string          `json:"supported_drugs"`
		DrugGeneMap    map[string]string `json:"drug_gene_map"`
	}
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/supported-drugs", nil), &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AZATHIOPRINE", "CLOPIDOGREL", "CODEINE", "FLUOROURACIL", "SIMVASTATIN", "WARFARIN"}, body.SupportedDrugs)
	assert.Equal(t, "CYP2D6", body.DrugGeneMap["CODEINE"])
}

func TestSupportedGenesEndpoint(t *testing.T) {
	s := testServer(t, nil)

	var body struct {
		SupportedGenes []string `json:"supported_genes"`
	}
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/supported-genes", nil), &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"CYP2C19", "CYP2C9", "CYP2D6", "DPYD", "SLCO1B1", "TPMT"}, body.SupportedGenes)
}

func TestAnalyzeSingleDrug(t *testing.T) {
	store := &memoryStore{}
	s := testServer(t, store)

	var results []map[string]any
	rec := doJSON(t, s, analyzeRequest(t, pmCodeineVCF, "codeine", "PATIENT_TEST01"), &results)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "PATIENT_TEST01", res["patient_id"])
	assert.Equal(t, "CODEINE", res["drug"])

	risk := res["risk_assessment"].(map[string]any)
	assert.Equal(t, "Ineffective", risk["risk_label"])
	assert.Equal(t, "moderate", risk["severity"])
	assert.InDelta(t, 0.95, risk["confidence_score"], 1e-9)

	profile := res["pharmacogenomic_profile"].(map[string]any)
	assert.Equal(t, "CYP2D6", profile["primary_gene"])
	assert.Equal(t, "*4/*4", profile["diplotype"])
	assert.Equal(t, "PM", profile["phenotype"])

	explanation := res["llm_generated_explanation"].(map[string]any)
	assert.NotEmpty(t, explanation["summary"])
	assert.NotEmpty(t, explanation["mechanism"])

	quality := res["quality_metrics"].(map[string]any)
	assert.Equal(t, true, quality["vcf_parsing_success"])
	assert.Equal(t, "CPIC v2.0", quality["guideline_version"])
	assert.InDelta(t, 0.75, quality["llm_confidence"], 1e-9)

	// Write-behind audit captured the assessment.
	records, err := store.ByPatient(context.Background(), "PATIENT_TEST01")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "CODEINE", records[0].Result.Drug)
}

func TestAnalyzeMixedDrugs(t *testing.T) {
	s := testServer(t, nil)

	var results []map[string]any
	rec := doJSON(t, s, analyzeRequest(t, pmCodeineVCF, "codeine, aspirin, warfarin", ""), &results)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results, 3)

	assert.Contains(t, results[0], "risk_assessment", "codeine assessed")
	assert.Equal(t, "unsupported_drug", results[1]["error"], "aspirin rejected per drug")
	assert.Equal(t, "ASPIRIN", results[1]["drug"])
	assert.Contains(t, results[2], "risk_assessment", "warfarin falls back without variants")

	// Generated patient ids follow the original convention.
	pid := results[0]["patient_id"].(string)
	assert.True(t, strings.HasPrefix(pid, "PATIENT_"), pid)
	assert.Len(t, pid, len("PATIENT_")+6)
}

func TestAnalyzeNoDrugs(t *testing.T) {
	s := testServer(t, nil)

	var body ErrorResponse
	rec := doJSON(t, s, analyzeRequest(t, pmCodeineVCF, " , ", ""), &body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_drugs", body.Error)
}

func TestAnalyzeInvalidVCFHeader(t *testing.T) {
	s := testServer(t, nil)

	var body ErrorResponse
	rec := doJSON(t, s, analyzeRequest(t, "not a vcf file", "codeine", ""), &body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_vcf_format", body.Error)
}

func TestAnalyzeMissingFile(t *testing.T) {
	s := testServer(t, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("drugs", "codeine"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp ErrorResponse
	rec := doJSON(t, s, req, &resp)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "file_read_error", resp.Error)
}

func TestAnalyzeFileTooLarge(t *testing.T) {
	s := testServer(t, nil)
	s.maxUploadBytes = 16

	var resp ErrorResponse
	rec := doJSON(t, s, analyzeRequest(t, pmCodeineVCF, "codeine", ""), &resp)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "file_too_large", resp.Error)
}

func TestPatientHistoryEndpoint(t *testing.T) {
	store := &memoryStore{}
	s := testServer(t, store)

	doJSON(t, s, analyzeRequest(t, pmCodeineVCF, "codeine", "PATIENT_HIST01"), nil)

	var body struct {
		PatientID   string                    `json:"patient_id"`
		Assessments []domain.AssessmentRecord `json:"assessments"`
	}
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/assessments/PATIENT_HIST01", nil), &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PATIENT_HIST01", body.PatientID)
	require.Len(t, body.Assessments, 1)
	assert.Equal(t, "CODEINE", body.Assessments[0].Result.Drug)
	assert.NotEmpty(t, body.Assessments[0].RequestID)
}

func TestPatientHistoryEmpty(t *testing.T) {
	s := testServer(t, nil)

	var body struct {
		Assessments []domain.AssessmentRecord `json:"assessments"`
	}
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/assessments/PATIENT_NONE00", nil), &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body.Assessments)
	assert.Empty(t, body.Assessments)
}

func TestPatientHistoryStoreFailure(t *testing.T) {
	s := testServer(t, failingStore{})

	var body ErrorResponse
	rec := doJSON(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/assessments/PATIENT_FAIL00", nil), &body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Error)
}

func TestRequestIDHonorsHeader(t *testing.T) {
	s := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id-123")
	rec := doJSON(t, s, req, nil)

	assert.Equal(t, "fixed-id-123", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	kb := loadKB(t, logger)
	assessor, err := service.NewAssessor(kb, 128, logger)
	require.NoError(t, err)

	s := NewServer(
		domain.ServerConfig{
			MaxUploadBytes:  1 << 20,
			RateLimitPerSec: 1,
			RateLimitBurst:  1,
			CORSOrigins:     []string{"*"},
		},
		assessor,
		vcf.NewParser(kb.SupportedGenes(), logger),
		explain.NewService(nil, nil, logger),
		audit.NopStore{},
		logger,
	)

	first := httptest.NewRecorder()
	s.Router().ServeHTTP(first, analyzeRequest(t, pmCodeineVCF, "codeine", ""))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Router().ServeHTTP(second, analyzeRequest(t, pmCodeineVCF, "codeine", ""))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
