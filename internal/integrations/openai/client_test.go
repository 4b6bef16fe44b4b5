package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"requirements-agent/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient / key resolution
// ---------------------------------------------------------------------------

// fakeGetter is a minimal paramstore.Getter stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.False(t, c.HasKeySource())
}

func TestResolveAPIKey_NoSource(t *testing.T) {
	_, err := NewClient().resolveAPIKey(context.Background())
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResolveAPIKey_StaticKeyWins(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: "sk-ssm", onCall: func() { calls++ }}
	c := NewClient(WithAPIKey(" sk-env "), WithParamStore(g, "/requirements-agent/openai-key"))
	require.True(t, c.HasKeySource())

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-env", key)
	require.Zero(t, calls)
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`, onCall: func() { calls++ }}
	c := NewClient(WithParamStore(g, "/requirements-agent/openai-key"))

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls, "SSM must only be called once per process lifetime")
}

func TestFetchAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		getter  Getter
		param   string
		want    string
		wantErr string
	}{
		{name: "json token", getter: &fakeGetter{val: `{"token":"sk-json"}`}, param: "/p", want: "sk-json"},
		{name: "bare token", getter: &fakeGetter{val: " sk-bare \n"}, param: "/p", want: "sk-bare"},
		{name: "json missing token", getter: &fakeGetter{val: `{"other":"x"}`}, param: "/p", wantErr: "API token is empty"},
		{name: "blank value", getter: &fakeGetter{val: "  "}, param: "/p", wantErr: "API token is empty"},
		{name: "malformed json", getter: &fakeGetter{val: `{"broken`}, param: "/p", wantErr: "unmarshal"},
		{name: "getter error", getter: &fakeGetter{err: errors.New("ssm unavailable")}, param: "/p", wantErr: "ssm unavailable"},
		{name: "nil getter", getter: nil, param: "/p", wantErr: "nil"},
		{name: "empty name", getter: &fakeGetter{val: "sk"}, param: " ", wantErr: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := fetchAPIKeyFromParamStore(context.Background(), tc.getter, tc.param)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, key)
		})
	}
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithAPIKey("sk-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}
	return NewClient(append(base, opts...)...)
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req chatRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		require.Equal(t, "gpt-mock", req.Model)
		require.NotNil(t, req.Temperature)
		require.InDelta(t, 0.7, *req.Temperature, 1e-9)
		require.Equal(t, 300, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Who will use it?" },
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTemperature(0.7), WithMaxTokens(300))
	resp, err := c.Chat(context.Background(), "gpt-mock", []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Who will use it?", resp)
}

func TestClient_Chat_OmitsUnsetTuning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotContains(t, string(raw), "temperature")
		require.NotContains(t, string(raw), "max_tokens")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestClient_Chat_StatusErrors(t *testing.T) {
	for _, status := range []int{400, 429, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
		srv.Close()

		require.Error(t, err)
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, err.Error(), "unexpected status")
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), "gpt-mock", nil)
	require.Error(t, err)
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c := NewClient(WithAPIKey("sk-test"), WithBaseURL("http://127.0.0.1:1"))
	c.httpClient = nil

	_, err := c.Chat(context.Background(), "gpt-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	_, err := NewClient(WithAPIKey("sk-test")).Chat(context.Background(), "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Chat_MissingKey(t *testing.T) {
	_, err := NewClient().Chat(context.Background(), "gpt-mock", nil)
	require.ErrorIs(t, err, ErrNoAPIKey)
}
