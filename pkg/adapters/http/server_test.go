package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fabula "github.com/fabulaverse/fabula"
	fabulahttp "github.com/fabulaverse/fabula/pkg/adapters/http"
	"github.com/fabulaverse/fabula/pkg/adapters/memory"
	"github.com/fabulaverse/fabula/pkg/domain"
)

func testFactory(t *testing.T) fabulahttp.EngineFactory {
	t.Helper()
	lib, err := memory.NewLibrary(domain.Graph{
		Subject: "history",
		Nodes: map[string]domain.StoryNode{
			"start": {
				ID: "start", Title: "The Gate", Text: "Hello, {name}!", ImagePrompt: "prompt-start",
				Payload: domain.ChoiceData{Options: []domain.Choice{
					{Text: "Onward", NextNodeID: "end"},
				}},
			},
			"end": {ID: "end", Title: "The End", Text: "Done.", ImagePrompt: "prompt-end", Payload: domain.EndData{}},
		},
	})
	require.NoError(t, err)

	cache := memory.NewCache()
	return func() (*fabula.Engine, error) {
		return fabula.New(
			fabula.WithLibrary(lib),
			fabula.WithGenerator(&memory.Generator{Fallback: "img"}),
			fabula.WithCache(cache),
		)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(fabulahttp.NewServer(testFactory(t)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]string{"playerName": "Alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]string{"playerName": "Alice"})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Alice", body["playerName"])
	assert.Equal(t, []any{"history"}, body["subjects"])
}

func TestSelectSubject(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/subject", map[string]string{"subject": "history"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "ready", body["phase"])
	node := body["node"].(map[string]any)
	assert.Equal(t, "start", node["id"])
	assert.Equal(t, "Hello, Alice!", node["text"])
	assert.Equal(t, "img", node["image"])

	// Options carry text and index only; transition targets stay
	// server side.
	options := node["options"].([]any)
	require.Len(t, options, 1)
	opt := options[0].(map[string]any)
	assert.Equal(t, "Onward", opt["text"])
	assert.NotContains(t, opt, "nextNodeId")
}

func TestSelectSubject_Unknown(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/subject", map[string]string{"subject": "alchemy"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnswerFlow(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/subject", map[string]string{"subject": "history"})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "choice", "index": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	outcome := body["outcome"].(map[string]any)
	assert.Equal(t, true, outcome["correct"])
	assert.Equal(t, float64(10), outcome["scoreDelta"])
	assert.Equal(t, float64(10), body["score"])

	node := body["node"].(map[string]any)
	assert.Equal(t, "end", node["id"])

	// The story is over: further answers conflict.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "choice", "index": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAnswer_BadPayload(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/subject", map[string]string{"subject": "history"})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "juggling"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "choice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "choice without index")

	// Wrong answer type for the current interaction.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "math", "value": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnswer_WithoutSubject(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer",
		map[string]any{"kind": "choice", "index": 0})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRestart(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/subject", map[string]string{"subject": "history"})
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/answer", map[string]any{"kind": "choice", "index": 0})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/restart", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["score"], "restart must reset the score")
	assert.Equal(t, "start", body["node"].(map[string]any)["id"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/restart", map[string]any{"toWelcome": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["phase"])
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/sessions/nope/subject"},
		{http.MethodGet, "/sessions/nope/node"},
		{http.MethodPost, "/sessions/nope/answer"},
		{http.MethodDelete, "/sessions/nope"},
	} {
		resp, _ := doJSON(t, tc.method, srv.URL+tc.path, map[string]any{})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, fmt.Sprintf("%s %s", tc.method, tc.path))
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp2, _ := doJSON(t, http.MethodGet, srv.URL+"/sessions/"+id+"/node", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
