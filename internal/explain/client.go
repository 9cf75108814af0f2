package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

const systemPrompt = `You are a senior clinical pharmacogenomics expert with deep knowledge of CPIC guidelines, pharmacokinetics, and precision medicine. Your role is to EXPLAIN a pre-determined drug risk assessment to clinicians and patients. You must:
1. NOT modify or invent genotype, phenotype, or risk level - these are given to you
2. Explain the biological mechanism behind the risk accurately
3. Cite rsIDs when describing variant effects
4. Reference relevant CPIC guideline sections
5. Write a patient-friendly summary (simple language, no jargon in summary)
6. Write a detailed mechanism explanation for clinician audience

Always respond in valid JSON only.`

// ChatClient calls an OpenAI-compatible chat completions endpoint. Failures
// trip a circuit breaker so that a degraded endpoint cannot slow down
// assessment requests; callers fall back to templates when Generate errors.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	temp       float64
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewChatClient creates a chat completions client from config. Returns nil
// when no API key is configured; the caller treats nil as templates-only.
func NewChatClient(cfg domain.ExplainerConfig, logger *logrus.Logger) *ChatClient {
	if cfg.APIKey == "" || strings.HasPrefix(cfg.APIKey, "sk-your") {
		return nil
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "explainer",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Explainer circuit breaker state changed")
		},
	})

	return &ChatClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// explanationPayload is the JSON object the model is instructed to return.
type explanationPayload struct {
	Summary          string          `json:"summary"`
	Mechanism        string          `json:"mechanism"`
	VariantCitations json.RawMessage `json:"variant_citations"`
}

// Generate asks the model to explain a frozen assessment result.
func (c *ChatClient) Generate(ctx context.Context, result *domain.RiskAssessmentResult) (*domain.Explanation, error) {
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, buildPrompt(result))
	})
	if err != nil {
		return nil, err
	}

	var payload explanationPayload
	if err := json.Unmarshal([]byte(raw.(string)), &payload); err != nil {
		return nil, fmt.Errorf("explainer returned malformed JSON: %w", err)
	}
	if payload.Summary == "" || payload.Mechanism == "" {
		return nil, fmt.Errorf("explainer response missing required fields")
	}

	return &domain.Explanation{
		Summary:             payload.Summary,
		Mechanism:           payload.Mechanism,
		VariantCitations:    parseCitations(payload.VariantCitations),
		ExplainerConfidence: 0.85,
	}, nil
}

func (c *ChatClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.temp,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &formatSpec{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildPrompt renders the structured user prompt for one assessment.
func buildPrompt(result *domain.RiskAssessmentResult) string {
	var variants strings.Builder
	rsids := citationRSIDs(result.DetectedVariants)
	for _, v := range result.DetectedVariants {
		fmt.Fprintf(&variants, "  - %s at %s:%d\n", v.RSID, v.Chromosome, v.Position)
	}
	if variants.Len() == 0 {
		variants.WriteString("  - No specific variants detected (inferred from phenotype)\n")
	}
	rsidsStr := "none"
	if len(rsids) > 0 {
		rsidsStr = strings.Join(rsids, ", ")
	}

	return fmt.Sprintf(`A pharmacogenomics risk assessment has already been completed using deterministic CPIC rules. Your task is to explain this assessment.

PATIENT GENOMIC PROFILE:
- Primary Gene: %s
- Diplotype (Star Allele): %s
- Metabolizer Phenotype: %s
- Drug Prescribed: %s
- Pre-determined Risk Level: %s (Severity: %s)
- CPIC Clinical Recommendation: %s
- Detected Variants:
%s
INSTRUCTIONS:
1. Explain WHY this gene/diplotype causes the %s risk for %s
2. Describe the enzyme/transporter mechanism affected by the variant(s)
3. Explain what %s phenotype means clinically for this drug
4. Cite these rsIDs explicitly in your explanation: %s
5. Align your explanation with CPIC guidelines

Return ONLY a JSON object with exactly these three fields: summary (patient-friendly, 2-3 sentences, no jargon), mechanism (detailed clinical mechanism for providers, 3-4 sentences), variant_citations (array of rsIDs). Do NOT include any text outside this JSON object.`,
		result.Gene, result.Diplotype.String(), result.Phenotype, result.Drug,
		result.RiskLabel, result.Severity, result.DoseAdjustment, variants.String(),
		result.RiskLabel, result.Drug, result.Phenotype, rsidsStr)
}

// parseCitations tolerates either a JSON array or a comma-joined string.
func parseCitations(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		var out []string
		for _, s := range strings.Split(single, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
