package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayardlab/bayard-gateway/internal/gateway"
	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
)

type fakePipeline struct {
	outcome *gateway.Outcome
	err     error
	lastReq gateway.Request
}

func (f *fakePipeline) Process(_ context.Context, req gateway.Request) (*gateway.Outcome, error) {
	f.lastReq = req
	return f.outcome, f.err
}

func newQueryApp(p Pipeline) *fiber.App {
	app := fiber.New()
	app.Post("/api/query", NewQueryHandler(p).ProcessQuery)
	return app
}

func postQuery(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &payload))
	return resp, payload
}

func TestProcessQuery_SearchEnvelope(t *testing.T) {
	score := 4
	p := &fakePipeline{outcome: &gateway.Outcome{Search: &gateway.SearchOutcome{
		RunID:          "run-1",
		Timestamp:      "2024-03-01 12:00:00",
		InputText:      "What is Pride Month?",
		Reflection:     "4 Relevant results.",
		Score:          &score,
		Documents:      []corpus.Document{{ID: "doc-1", Title: "Pride Month"}},
		ModelOutput:    "# Pride Month\n\nAn answer.",
		FeedbackID:     "fb-1",
		ConversationID: "conv-1",
	}}}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":"What is Pride Month?","conversation_id":"conv-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.JSONEq(t, `"run-1"`, string(payload["run_id"]))
	assert.JSONEq(t, `"2024-03-01 12:00:00"`, string(payload["timestamp"]))
	assert.JSONEq(t, `"What is Pride Month?"`, string(payload["input_text"]))
	assert.JSONEq(t, `"4 Relevant results."`, string(payload["search_quality_reflection"]))
	assert.JSONEq(t, `4`, string(payload["search_quality_score"]))
	assert.JSONEq(t, `"fb-1"`, string(payload["feedback_id"]))
	assert.JSONEq(t, `"conv-1"`, string(payload["conversation_id"]))
	assert.Contains(t, string(payload["documents"]), `"doc-1"`)

	assert.Equal(t, "What is Pride Month?", p.lastReq.InputText)
	assert.Equal(t, "conv-1", p.lastReq.ConversationID)
	assert.Nil(t, p.lastReq.FeedbackRating)
}

func TestProcessQuery_MissingScoreAndDocumentsMarshalExplicitly(t *testing.T) {
	p := &fakePipeline{outcome: &gateway.Outcome{Search: &gateway.SearchOutcome{
		RunID:       "run-1",
		ModelOutput: "answer",
	}}}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":"query"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `null`, string(payload["search_quality_score"]))
	assert.JSONEq(t, `[]`, string(payload["documents"]))
}

func TestProcessQuery_ConversationEnvelope(t *testing.T) {
	p := &fakePipeline{outcome: &gateway.Outcome{
		Conversation: &gateway.ConversationOutcome{ModelOutput: "try asking about a topic"},
	}}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":"hi"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"try asking about a topic"`, string(payload["model_output"]))
	assert.Len(t, payload, 1)
}

func TestProcessQuery_FeedbackRatingForwarded(t *testing.T) {
	p := &fakePipeline{outcome: &gateway.Outcome{Search: &gateway.SearchOutcome{}}}

	resp, _ := postQuery(t, newQueryApp(p), `{"input_text":"query","feedback_rating":3.5}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, p.lastReq.FeedbackRating)
	assert.Equal(t, 3.5, *p.lastReq.FeedbackRating)
}

func TestProcessQuery_EmptyInput(t *testing.T) {
	p := &fakePipeline{err: gateway.ErrEmptyInput}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `"Input text is required"`, string(payload["error"]))
}

func TestProcessQuery_MalformedBody(t *testing.T) {
	p := &fakePipeline{}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `"Input text is required"`, string(payload["error"]))
}

func TestProcessQuery_SynthesisFailure(t *testing.T) {
	p := &fakePipeline{err: errors.New("synthesis failed: backend timeout")}

	resp, payload := postQuery(t, newQueryApp(p), `{"input_text":"query"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `"Failed to process query"`, string(payload["error"]))
}
