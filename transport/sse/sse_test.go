package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/switchboard"
)

func TestRespondResolvesRequest(t *testing.T) {
	board := switchboard.New()
	server := httptest.NewServer(New(board).Handler())
	defer server.Close()

	ctx := context.Background()
	handle, err := board.Submit(ctx, "what size pizza?", nil)
	require.NoError(t, err)

	payload := `{"request_id":"` + handle.ID().String() + `","response":"medium"}`
	resp, err := http.Post(server.URL+"/respond", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, decodeBody(resp, &status))
	assert.Equal(t, "received", status.Status)

	answer, err := handle.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "medium", answer)
}

func TestRespondToClosedRequestIsSoft(t *testing.T) {
	board := switchboard.New()
	server := httptest.NewServer(New(board).Handler())
	defer server.Close()

	handle, err := board.Submit(context.Background(), "quick one", nil)
	require.NoError(t, err)
	require.NoError(t, board.Resolve(handle.ID(), "already sorted"))

	payload := `{"request_id":"` + handle.ID().String() + `","response":"too late"}`
	resp, err := http.Post(server.URL+"/respond", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "a lost race is not a client error")
	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, decodeBody(resp, &status))
	assert.Equal(t, "unknown_request", status.Status)
}

func TestRespondValidation(t *testing.T) {
	board := switchboard.New()
	server := httptest.NewServer(New(board).Handler())
	defer server.Close()

	for name, payload := range map[string]string{
		"garbage":      "not json at all",
		"missing id":   `{"response":"hi"}`,
		"malformed id": `{"request_id":"nope","response":"hi"}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/respond", "application/json", strings.NewReader(payload))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRequestsPollTracksObservers(t *testing.T) {
	board := switchboard.New()
	server := httptest.NewServer(New(board).Handler())
	defer server.Close()

	_, err := board.Submit(context.Background(), "who's asking?", map[string]any{"agent": "pizzeria"})
	require.NoError(t, err)

	body := getBody(t, server.URL+"/requests?observer=browser-1")
	entries := gjson.GetBytes(body, "#").Int()
	require.EqualValues(t, 1, entries)
	assert.Equal(t, "who's asking?", gjson.GetBytes(body, "0.question").String())
	assert.Equal(t, "pizzeria", gjson.GetBytes(body, "0.metadata.agent").String())

	// The same observer polling again gets nothing; a fresh one still sees it.
	assert.EqualValues(t, 0, gjson.GetBytes(getBody(t, server.URL+"/requests?observer=browser-1"), "#").Int())
	assert.EqualValues(t, 1, gjson.GetBytes(getBody(t, server.URL+"/requests?observer=browser-2"), "#").Int())

	// Without an observer name, the full open set is always returned.
	assert.EqualValues(t, 1, gjson.GetBytes(getBody(t, server.URL+"/requests"), "#").Int())
}

func TestEventsStreamsPrompts(t *testing.T) {
	board := switchboard.New()
	server := httptest.NewServer(New(board).Handler())
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	handle, err := board.Submit(context.Background(), "streamed question", nil)
	require.NoError(t, err)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		frame := strings.TrimPrefix(line, "data: ")
		if gjson.Get(frame, "type").String() != "prompt" {
			continue // heartbeat or closure
		}
		assert.Equal(t, handle.ID().String(), gjson.Get(frame, "id").String())
		assert.Equal(t, "streamed question", gjson.Get(frame, "question").String())
		return
	}
	t.Fatalf("stream ended without a prompt frame: %v", scanner.Err())
}

func decodeBody(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func getBody(t *testing.T, url string) []byte {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return []byte(buf.String())
}
