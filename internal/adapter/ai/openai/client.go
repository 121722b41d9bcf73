// Package openai implements domain.ReasoningBackend against any
// OpenAI-compatible chat completions API.
//
// Every call is a single round trip bounded by the configured timeout.
// There is no retry here: scoring degrades to the heuristic path and the
// upload flow absorbs extraction failures, so retrying would only stretch
// request latency.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/internal/observability"
)

const (
	maxTokensSkills   = 500
	maxTokensAnalysis = 1000
	maxTokensMatch    = 300
	maxTokensSuggest  = 800
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	promptBudget int
	hc           *http.Client
	tokens       *tokenCounter
}

// New constructs a Client from configuration.
func New(cfg config.Config) *Client {
	return &Client{
		apiKey:       strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL:      strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:        cfg.OpenAIModel,
		promptBudget: cfg.PromptTokenBudget,
		hc: &http.Client{
			Timeout:   cfg.BackendTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: newTokenCounter(),
	}
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool { return c.apiKey != "" }

// ExtractSkills asks the model for a JSON array of skills found in the
// resume text. A reply that cannot be parsed yields an empty list, not an
// error; only transport trouble is reported.
func (c *Client) ExtractSkills(ctx domain.Context, resumeText string) ([]string, error) {
	resumeText = c.tokens.Truncate(resumeText, c.model, c.promptBudget)
	content, err := c.chatJSON(ctx, "extract_skills",
		"You are an AI assistant that extracts skills from resume text. Return only a JSON array of skills.",
		"Extract skills from this resume text: "+resumeText,
		maxTokensSkills)
	if err != nil {
		return nil, err
	}

	var skills []string
	if uerr := json.Unmarshal([]byte(cleanJSON(content)), &skills); uerr != nil {
		observability.LoggerFromContext(ctx).Warn("skill extraction reply unparseable",
			"error", uerr, "content_len", len(content))
		return []string{}, nil
	}
	return skills, nil
}

// AnalyzeComprehensively asks the model for the full structured analysis of
// a resume. An unparseable reply degrades to the defaulted record so the
// caller always gets something storable.
func (c *Client) AnalyzeComprehensively(ctx domain.Context, resumeText string) (domain.AIAnalysisRecord, error) {
	resumeText = c.tokens.Truncate(resumeText, c.model, c.promptBudget)
	content, err := c.chatJSON(ctx, "analyze",
		analyzeSystemPrompt,
		"Analyze this resume comprehensively: "+resumeText,
		maxTokensAnalysis)
	if err != nil {
		return domain.AIAnalysisRecord{}, err
	}

	var rec domain.AIAnalysisRecord
	if uerr := json.Unmarshal([]byte(cleanJSON(content)), &rec); uerr != nil {
		observability.LoggerFromContext(ctx).Warn("analysis reply unparseable",
			"error", uerr, "content_len", len(content))
		return domain.DefaultAnalysisRecord(time.Now().UTC()), nil
	}
	rec.LastComputed = time.Now().UTC()
	return rec, nil
}

const analyzeSystemPrompt = `You are an AI assistant that analyzes resumes comprehensively. Extract detailed information and return a JSON object with the following structure:
{
    "skills": ["skill1", "skill2"],
    "experience_years": "X years",
    "education": ["degree1", "degree2"],
    "certifications": ["cert1", "cert2"],
    "languages": ["language1", "language2"],
    "summary": "Brief professional summary",
    "strengths": ["strength1", "strength2"],
    "experience_level": "entry|mid|senior|expert",
    "key_achievements": ["achievement1", "achievement2"]
}`

// MatchScore asks the model to rate one job against the candidate. A reply
// that is not the expected JSON object yields the neutral (0, "Unable to
// calculate match") result without an error; transport failures surface so
// the caller can fall back to heuristic scoring.
func (c *Client) MatchScore(ctx domain.Context, jobText string, skills []string, experience string) (int, string, error) {
	user := fmt.Sprintf("Job: %s\nUser Skills: %s\nExperience: %s\nCalculate match score.",
		jobText, strings.Join(skills, ", "), experience)
	content, err := c.chatJSON(ctx, "match_score",
		`You are an AI assistant that matches jobs to users based on skills and experience. Return only a JSON object with "match_score" (0-100) and "reasoning".`,
		user,
		maxTokensMatch)
	if err != nil {
		return 0, "", err
	}

	var out struct {
		MatchScore int    `json:"match_score"`
		Reasoning  string `json:"reasoning"`
	}
	if uerr := json.Unmarshal([]byte(cleanJSON(content)), &out); uerr != nil {
		observability.LoggerFromContext(ctx).Warn("match score reply unparseable",
			"error", uerr, "content_len", len(content))
		return 0, "Unable to calculate match", nil
	}
	return out.MatchScore, out.Reasoning, nil
}

// SuggestJobs asks the model to propose job titles for a skill set. Unlike
// the scoring paths there is no sensible degraded result, so a reply that is
// not a JSON array is a domain.ErrBackendMalformed.
func (c *Client) SuggestJobs(ctx domain.Context, skills []string, experience string, limit int) ([]domain.JobSuggestion, error) {
	user := fmt.Sprintf("Skills: %s\nExperience: %s\nSuggest up to %d matching job titles.",
		strings.Join(skills, ", "), experience, limit)
	content, err := c.chatJSON(ctx, "suggest_jobs",
		`You are an AI career assistant. Suggest job titles matching the candidate's skills. Return only a JSON array of objects with "title", "description", "recommended_level" (entry|mid|senior|expert), and "confidence" (0-100).`,
		user,
		maxTokensSuggest)
	if err != nil {
		return nil, err
	}

	var suggestions []domain.JobSuggestion
	if uerr := json.Unmarshal([]byte(cleanJSON(content)), &suggestions); uerr != nil {
		return nil, fmt.Errorf("%w: suggest reply: %v", domain.ErrBackendMalformed, uerr)
	}
	return suggestions, nil
}

// chatJSON performs one chat completion call and returns the first choice's
// message content.
func (c *Client) chatJSON(ctx domain.Context, op, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", domain.ErrBackendUnconfigured
	}

	body, _ := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.2,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	})

	start := time.Now()
	content, err := c.doChat(ctx, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ObserveBackendCall(op, outcome, time.Since(start))
	if err != nil {
		slog.Warn("backend call failed", slog.String("op", op), slog.Any("error", err))
		return "", err
	}
	return content, nil
}

func (c *Client) doChat(ctx domain.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: chat status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", domain.ErrBackendMalformed, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", domain.ErrBackendMalformed)
	}
	return out.Choices[0].Message.Content, nil
}
