package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Config{
		OpenAIAPIKey:   "test-key",
		OpenAIBaseURL:  srv.URL,
		OpenAIModel:    "gpt-3.5-turbo",
		BackendTimeout: 5 * time.Second,
	})
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	require.NoError(t, err)
}

func TestConfigured(t *testing.T) {
	t.Parallel()
	assert.False(t, New(config.Config{OpenAIAPIKey: ""}).Configured())
	assert.False(t, New(config.Config{OpenAIAPIKey: "   "}).Configured())
	assert.True(t, New(config.Config{OpenAIAPIKey: "k"}).Configured())
}

func TestChatJSON_Unconfigured(t *testing.T) {
	t.Parallel()
	c := New(config.Config{})
	_, err := c.ExtractSkills(context.Background(), "text")
	require.ErrorIs(t, err, domain.ErrBackendUnconfigured)
}

func TestExtractSkills(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		chatReply(t, w, "```json\n[\"PHP\", \"Laravel\"]\n```")
	})

	skills, err := c.ExtractSkills(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Equal(t, []string{"PHP", "Laravel"}, skills)
}

func TestExtractSkills_UnparseableYieldsEmpty(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "Sorry, I cannot produce a list for that.")
	})

	skills, err := c.ExtractSkills(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestMatchScore(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `Here is my assessment: {"match_score": 85, "reasoning": "Strong overlap"} hope that helps!`)
	})

	score, reasoning, err := c.MatchScore(context.Background(), "Go developer role", []string{"Go"}, "senior")
	require.NoError(t, err)
	assert.Equal(t, 85, score)
	assert.Equal(t, "Strong overlap", reasoning)
}

func TestMatchScore_MalformedYieldsNeutral(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "eighty five out of one hundred")
	})

	score, reasoning, err := c.MatchScore(context.Background(), "role", []string{"Go"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.Equal(t, "Unable to calculate match", reasoning)
}

func TestMatchScore_ServerErrorSurfaces(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.MatchScore(context.Background(), "role", []string{"Go"}, "")
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestAnalyzeComprehensively(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"skills":["Go"],"experience_years":"5 years","summary":"Solid backend engineer","experience_level":"senior"}`)
	})

	rec, err := c.AnalyzeComprehensively(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, rec.Skills)
	assert.Equal(t, "5 years", rec.ExperienceYears)
	assert.Equal(t, domain.LevelSenior, rec.ExperienceLevel)
	assert.False(t, rec.LastComputed.IsZero())
}

func TestAnalyzeComprehensively_MalformedYieldsDefault(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "I analyzed the resume and it looks great.")
	})

	rec, err := c.AnalyzeComprehensively(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", rec.ExperienceYears)
	assert.Equal(t, "Unable to generate summary", rec.Summary)
	assert.Equal(t, domain.LevelEntry, rec.ExperienceLevel)
}

func TestSuggestJobs(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `[{"title":"Backend Engineer","description":"Go services","recommended_level":"mid","confidence":80}]`)
	})

	got, err := c.SuggestJobs(context.Background(), []string{"Go"}, "mid", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Backend Engineer", got[0].Title)
	assert.Equal(t, 80, got[0].Confidence)
}

func TestSuggestJobs_Malformed(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "no structured output here")
	})

	_, err := c.SuggestJobs(context.Background(), []string{"Go"}, "", 5)
	require.ErrorIs(t, err, domain.ErrBackendMalformed)
}

func TestChatJSON_EmptyChoices(t *testing.T) {
	t.Parallel()
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, _, err := c.MatchScore(context.Background(), "role", []string{"Go"}, "")
	require.ErrorIs(t, err, domain.ErrBackendMalformed)
}
