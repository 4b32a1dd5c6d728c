// Package testgemini fakes the generateContent endpoint so extraction
// tests run without a key or network.
package testgemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services/gemini"
	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

type mockServerState struct {
	tokens       []timetable.Token
	failWith     int // when non zero every request answers with this status
	requestCount atomic.Int32
}

func (m *mockServerState) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	m.requestCount.Add(1)
	if m.failWith != 0 {
		http.Error(w, "engine unavailable", m.failWith)
		return
	}
	if r.URL.Query().Get("key") == "" {
		http.Error(w, "API key missing", http.StatusForbidden)
		return
	}

	cells, err := json.Marshal(m.tokens)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// wrap in fences on purpose, the adapter has to strip them
	text := "```json\n" + string(cells) + "\n```"
	response := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// returns a new server which will be closed once the context ends
func NewMockServer(ctx context.Context, tokens []timetable.Token, failWith int) *httptest.Server {
	serverState := &mockServerState{tokens: tokens, failWith: failWith}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1beta/models/{model}", serverState.handleGenerateContent)

	server := httptest.NewServer(mux)
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	return server
}

// GetMockTestingService wires a gemini service against a mock server that
// answers with the given tokens; the server lives until ctx is done.
func GetMockTestingService(ctx context.Context, tokens []timetable.Token) (extraction.Service, error) {
	mockServer := NewMockServer(ctx, tokens, 0)

	geminiService := gemini.GetDefaultService()
	geminiService.SetEndpoint(mockServer.URL)
	geminiService.SetAPIKey("test-key")
	if geminiService.GetName() == "" {
		return nil, fmt.Errorf("service did not initialize")
	}
	return geminiService, nil
}

// GetFailingTestingService wires a gemini service against a mock that
// always answers with the given http status.
func GetFailingTestingService(ctx context.Context, status int) (extraction.Service, error) {
	mockServer := NewMockServer(ctx, nil, status)

	geminiService := gemini.GetDefaultService()
	geminiService.SetEndpoint(mockServer.URL)
	geminiService.SetAPIKey("test-key")
	geminiService.RequestRetryCount = 0
	return geminiService, nil
}
