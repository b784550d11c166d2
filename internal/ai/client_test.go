package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: timeout})
	require.NoError(t, err)
	return client
}

func testInput() AnalysisInput {
	ticket := store.Ticket{ID: "t-1", Title: "Late", Description: "parcel late", CustomerEmail: "a@test.com", DisputeValue: 40, Category: "shipping"}
	return AnalysisInput{Ticket: ticket, Profile: scoring.GenerateProfile(ticket.CustomerEmail, ticket.DisputeValue)}
}

func TestNewClientWithoutKeyIsDisabled(t *testing.T) {
	client, err := NewClient(Config{})
	assert.Nil(t, client)
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.False(t, client.Enabled())

	_, err = client.Analyze(context.Background(), testInput())
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"refund_score\": 120, \"decision\": \"Approve\", \"risk_level\": \"LOW\", \"reasoning\": \" Loyal customer \", \"proposed_amount\": -3}\n```"))
	}, time.Second)

	result, err := client.Analyze(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-3.5-turbo", gotBody["model"])
	require.NotNil(t, result.RefundScore)
	assert.Equal(t, 100, *result.RefundScore)
	assert.Equal(t, scoring.RiskLow, result.RiskLevel)
	assert.Equal(t, "Loyal customer", result.Reasoning)
	require.NotNil(t, result.ProposedAmount)
	assert.Equal(t, 0.0, *result.ProposedAmount)
}

func TestAnalyzeFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    FailureKind
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			},
			kind: FailureStatus,
		},
		{
			name: "non json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			kind: FailureMalformed,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			kind: FailureEmpty,
		},
		{
			name: "blank content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completion("   "))
			},
			kind: FailureEmpty,
		},
		{
			name: "content not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completion("I think you should refund"))
			},
			kind: FailureMalformed,
		},
		{
			name: "missing score",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completion(`{"risk_level":"low","reasoning":"ok"}`))
			},
			kind: FailureMalformed,
		},
		{
			name: "unknown risk level",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completion(`{"refund_score":70,"risk_level":"extreme","reasoning":"ok"}`))
			},
			kind: FailureMalformed,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			kind: FailureTimeout,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.handler, 100*time.Millisecond)
			_, err := client.Analyze(context.Background(), testInput())
			require.Error(t, err)
			var failure *Failure
			require.True(t, errors.As(err, &failure), "expected *Failure, got %T", err)
			assert.Equal(t, tc.kind, failure.Kind)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestAnalyzeMakesSingleAttempt(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}, time.Second)

	_, err := client.Analyze(context.Background(), testInput())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"Sure! {\"a\":1} hope that helps", "{\"a\":1}"},
	}
	for _, tc := range tests {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
