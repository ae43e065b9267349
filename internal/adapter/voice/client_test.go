package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgate/mindgate/internal/domain"
)

func TestTranscribeEscapesLanguage(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transcribe", r.URL.Path)
		gotLanguage = r.URL.Query().Get("language")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	text, err := client.Transcribe(context.Background(), []byte("audio"), "pt&mode=x")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	// The raw value must round-trip as one parameter, not split the query.
	assert.Equal(t, "pt&mode=x", gotLanguage)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/synthesize", r.URL.Path)
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	audio, err := client.Synthesize(context.Background(), "hello", "en")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), audio)
}

func TestTranscribeServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Transcribe(context.Background(), []byte("audio"), "")
	require.ErrorIs(t, err, domain.ErrCollaboratorUnavailable)
}
