// internal/common/gemini/client_test.go
package gemini

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	mu          sync.Mutex
	generateErr []error
	generate    *genai.GenerateContentResponse
	embed       *genai.EmbedContentResponse
	embedErr    error
	calls       int
	lastModel   string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastModel = model
	if len(f.generateErr) > 0 {
		err := f.generateErr[0]
		f.generateErr = f.generateErr[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.generate, nil
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, _ []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastModel = model
	return f.embed, f.embedErr
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGenerateContent_JoinsParts(t *testing.T) {
	models := &fakeModels{generate: textResponse("first", "  ", "second")}
	client := newWithModels(models, Config{Model: "gemini-test"})

	out, err := client.GenerateContent(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", out)
	assert.Equal(t, "gemini-test", models.lastModel)
}

func TestGenerateContent_RetriesTemporaryErrors(t *testing.T) {
	models := &fakeModels{
		generateErr: []error{genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}},
		generate:    textResponse("ok"),
	}
	client := newWithModels(models, Config{RetryDelay: time.Millisecond})

	out, err := client.GenerateContent(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, models.calls)
}

func TestGenerateContent_DoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{
		generateErr: []error{genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}
	client := newWithModels(models, Config{RetryDelay: time.Millisecond})

	_, err := client.GenerateContent(context.Background(), "analyze")
	require.Error(t, err)
	assert.Equal(t, 1, models.calls)
}

func TestGenerateContent_EmptyInputAndOutput(t *testing.T) {
	client := newWithModels(&fakeModels{generate: textResponse("")}, Config{})

	_, err := client.GenerateContent(context.Background(), "   ")
	assert.Error(t, err)

	_, err = client.GenerateContent(context.Background(), "analyze")
	assert.Error(t, err)
}

func TestEmbed_ConvertsValues(t *testing.T) {
	models := &fakeModels{embed: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.5, -1, 2}}},
	}}
	client := newWithModels(models, Config{})

	vec, err := client.Embed(context.Background(), "go developer")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1, 2}, vec)
	assert.Equal(t, defaultEmbeddingModel, models.lastModel)
}

func TestEmbed_Failures(t *testing.T) {
	client := newWithModels(&fakeModels{embed: &genai.EmbedContentResponse{}}, Config{})
	_, err := client.Embed(context.Background(), "text")
	assert.Error(t, err)

	client = newWithModels(&fakeModels{embedErr: errors.New("boom")}, Config{})
	_, err = client.Embed(context.Background(), "text")
	assert.Error(t, err)

	_, err = client.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}
