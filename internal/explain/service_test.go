package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func toxicCodeineResult() *domain.RiskAssessmentResult {
	return &domain.RiskAssessmentResult{
		Gene:      "CYP2D6",
		Drug:      "CODEINE",
		Diplotype: domain.NewDiplotype("*4", "*4"),
		Phenotype: domain.PhenotypePM,
		DetectedVariants: []domain.DetectedVariant{
			{RSID: "rs3892097", Chromosome: "22", Position: 42130692},
		},
		RiskLabel:        domain.RiskIneffective,
		Severity:         domain.SeverityModerate,
		ConfidenceScore:  0.95,
		MatchType:        domain.MatchDiplotype,
		GuidelineVersion: "CPIC v2.0",
		DoseAdjustment:   "Avoid codeine",
	}
}

func TestTemplateRendererKnownPair(t *testing.T) {
	explanation := NewTemplateRenderer().Render(toxicCodeineResult())

	assert.Contains(t, explanation.Mechanism, "CYP2D6")
	assert.Contains(t, explanation.Mechanism, "*4/*4")
	assert.Contains(t, explanation.Mechanism, "rs3892097")
	assert.Contains(t, explanation.Summary, "codeine")
	assert.Contains(t, explanation.Summary, "may not work for you")
	assert.Equal(t, []string{"rs3892097"}, explanation.VariantCitations)
	assert.InDelta(t, 0.75, explanation.ExplainerConfidence, 1e-9)
	assert.True(t, explanation.GeneratedByTemplates)
}

func TestTemplateRendererUnknownPair(t *testing.T) {
	result := toxicCodeineResult()
	result.Gene = "CYP3A5"
	result.Drug = "TACROLIMUS"
	result.RiskLabel = domain.RiskAdjustDosage

	explanation := NewTemplateRenderer().Render(result)

	assert.Contains(t, explanation.Mechanism, "CYP3A5")
	assert.Contains(t, explanation.Mechanism, "TACROLIMUS")
	assert.Contains(t, explanation.Summary, "healthcare provider")
}

func TestTemplateRendererNoVariants(t *testing.T) {
	result := toxicCodeineResult()
	result.DetectedVariants = nil

	explanation := NewTemplateRenderer().Render(result)

	assert.Contains(t, explanation.Mechanism, "no specific variants")
	assert.Empty(t, explanation.VariantCitations)
}

func TestNewChatClientRequiresKey(t *testing.T) {
	assert.Nil(t, NewChatClient(domain.ExplainerConfig{}, testLogger()))
	assert.Nil(t, NewChatClient(domain.ExplainerConfig{APIKey: "sk-your-key-here"}, testLogger()))
	assert.NotNil(t, NewChatClient(domain.ExplainerConfig{
		APIKey:  "sk-live",
		BaseURL: "https://api.openai.com/v1",
		Timeout: time.Second,
	}, testLogger()))
}

func TestChatClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "CYP2D6")
		assert.Contains(t, req.Messages[1].Content, "rs3892097")

		payload := `{"summary":"Plain words.","mechanism":"Enzyme detail.","variant_citations":["rs3892097"]}`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": payload}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewChatClient(domain.ExplainerConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o",
		Timeout: 5 * time.Second,
	}, testLogger())
	require.NotNil(t, client)

	explanation, err := client.Generate(context.Background(), toxicCodeineResult())
	require.NoError(t, err)

	assert.Equal(t, "Plain words.", explanation.Summary)
	assert.Equal(t, "Enzyme detail.", explanation.Mechanism)
	assert.Equal(t, []string{"rs3892097"}, explanation.VariantCitations)
	assert.False(t, explanation.GeneratedByTemplates)
}

func TestChatClientGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "non-JSON model output",
			handler: func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]any{
					"choices": []map[string]any{
						{"message": map[string]string{"role": "assistant", "content": "sorry, no JSON"}},
					},
				}
				json.NewEncoder(w).Encode(resp)
			},
		},
		{
			name: "missing required fields",
			handler: func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]any{
					"choices": []map[string]any{
						{"message": map[string]string{"role": "assistant", "content": `{"summary":""}`}},
					},
				}
				json.NewEncoder(w).Encode(resp)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewChatClient(domain.ExplainerConfig{
				BaseURL: srv.URL,
				APIKey:  "sk-test",
				Timeout: 5 * time.Second,
			}, testLogger())

			_, err := client.Generate(context.Background(), toxicCodeineResult())
			assert.Error(t, err)
		})
	}
}

func TestServiceFallsBackToTemplates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewChatClient(domain.ExplainerConfig{
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Timeout: 5 * time.Second,
	}, testLogger())
	svc := NewService(client, nil, testLogger())

	explanation := svc.Explain(context.Background(), toxicCodeineResult())
	assert.True(t, explanation.GeneratedByTemplates, "endpoint failure degrades to templates")
	assert.NotEmpty(t, explanation.Summary)
}

func TestServiceTemplatesOnlyWithoutClient(t *testing.T) {
	svc := NewService(nil, nil, testLogger())

	explanation := svc.Explain(context.Background(), toxicCodeineResult())
	assert.True(t, explanation.GeneratedByTemplates)
}

type fakeCache struct {
	stored *domain.Explanation
	hit    *domain.Explanation
	sets   int
}

func (f *fakeCache) Get(ctx context.Context, result *domain.RiskAssessmentResult) (*domain.Explanation, bool, error) {
	if f.hit != nil {
		return f.hit, true, nil
	}
	return nil, false, nil
}

func (f *fakeCache) Set(ctx context.Context, result *domain.RiskAssessmentResult, explanation *domain.Explanation) error {
	f.stored = explanation
	f.sets++
	return nil
}

func TestServiceCacheHitSkipsGeneration(t *testing.T) {
	cached := &domain.Explanation{Summary: "cached", Mechanism: "cached"}
	cache := &fakeCache{hit: cached}
	svc := NewService(nil, cache, testLogger())

	explanation := svc.Explain(context.Background(), toxicCodeineResult())
	assert.Same(t, cached, explanation)
	assert.Zero(t, cache.sets)
}

func TestServiceStoresGeneratedExplanation(t *testing.T) {
	cache := &fakeCache{}
	svc := NewService(nil, cache, testLogger())

	explanation := svc.Explain(context.Background(), toxicCodeineResult())
	assert.Equal(t, 1, cache.sets)
	assert.Same(t, explanation, cache.stored)
}

func TestParseCitations(t *testing.T) {
	assert.Equal(t, []string{"rs1", "rs2"}, parseCitations(json.RawMessage(`["rs1","rs2"]`)))
	assert.Equal(t, []string{"rs1", "rs2"}, parseCitations(json.RawMessage(`"rs1, rs2"`)))
	assert.Nil(t, parseCitations(nil))
	assert.Nil(t, parseCitations(json.RawMessage(`42`)))
}
