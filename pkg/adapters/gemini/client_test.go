package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabulaverse/fabula/pkg/adapters/gemini"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/images", r.URL.Path)

		var req struct {
			Prompt      string `json:"prompt"`
			AspectRatio string `json:"aspectRatio"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a castle", req.Prompt)
		assert.Equal(t, "16:9", req.AspectRatio)

		json.NewEncoder(w).Encode(map[string]string{"image": "data:image/png;base64,AAAA"})
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	img, err := client.GenerateImage(context.Background(), "a castle", ports.AspectWide)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", img)
}

func TestGenerateImage_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	_, err := client.GenerateImage(context.Background(), "a castle", ports.AspectWide)
	assert.True(t, errors.Is(err, domain.ErrRateLimited), "429 must map to ErrRateLimited, got %v", err)
}

func TestGenerateImage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	_, err := client.GenerateImage(context.Background(), "a castle", ports.AspectWide)
	require.True(t, errors.Is(err, domain.ErrContentUnavailable))
	assert.Contains(t, err.Error(), "model exploded")
}

func TestGenerateImage_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	_, err := client.GenerateImage(context.Background(), "a castle", ports.AspectWide)
	assert.True(t, errors.Is(err, domain.ErrContentUnavailable))
}

func TestLocateItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/locate", r.URL.Path)

		var req struct {
			Image string   `json:"image"`
			Items []string `json:"items"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"Golden key", "Rusty lantern"}, req.Items)

		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"name": "Golden key", "x": 10.0, "y": 20.0, "width": 5.0, "height": 5.0},
			},
		})
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	boxes, err := client.LocateItems(context.Background(), "img", []string{"Golden key", "Rusty lantern"})
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "Golden key", boxes[0].Name)
	assert.Equal(t, 10.0, boxes[0].X)
}

func TestStyleAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/avatar", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"image": "avatar-img"})
	}))
	defer srv.Close()

	client := gemini.New(srv.URL)
	img, err := client.StyleAvatar(context.Background(), "photo", "storybook explorer")
	require.NoError(t, err)
	assert.Equal(t, "avatar-img", img)
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := gemini.New(srv.URL)
	_, err := client.GenerateImage(ctx, "a castle", ports.AspectWide)
	assert.Error(t, err)
}
