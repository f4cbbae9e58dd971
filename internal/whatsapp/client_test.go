package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestClient_SendMessage(t *testing.T) {
	var gotAuth string
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var msg OutboundMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "whatsapp", msg.MessagingProduct)
		assert.Equal(t, "text", msg.Type)

		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.123"}]}`))
	}))

	id, err := client.SendMessage(context.Background(), "secret-token", "555000", &OutboundMessage{
		To:   "+15551230001",
		Type: "text",
		Text: &TextObj{Body: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", id)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/555000/messages", gotPath)
}

func TestClient_SendMessage_ProviderRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))

	_, err := client.SendMessage(context.Background(), "t", "555000", &OutboundMessage{
		To:   "+0",
		Type: "text",
		Text: &TextObj{Body: "hello"},
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "invalid recipient")
}

func TestClient_GetMediaDescriptor(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media-42", r.URL.Path)
		json.NewEncoder(w).Encode(MediaDescriptor{
			ID:       "media-42",
			URL:      "https://lookaside.example.com/media-42",
			MimeType: "image/jpeg",
		})
	}))

	desc, err := client.GetMediaDescriptor(context.Background(), "t", "media-42")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", desc.MimeType)
	assert.Equal(t, "https://lookaside.example.com/media-42", desc.URL)
}

func TestClient_DownloadMedia(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))

	data, mime, err := client.DownloadMedia(context.Background(), "t", srv.URL+"/dl")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", mime)
}

func TestClient_UploadMedia(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/555000/media", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whatsapp", r.FormValue("messaging_product"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "header.jpg", header.Filename)

		json.NewEncoder(w).Encode(UploadResponse{ID: "minted-media-id"})
	}))

	id, err := client.UploadMedia(context.Background(), "t", "555000", []byte("jpg"), "image/jpeg", "header.jpg")
	require.NoError(t, err)
	assert.Equal(t, "minted-media-id", id)
}
