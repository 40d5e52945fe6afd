package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "bukti", "api_key": "key"})

	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=bukti&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/auto/upload", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "pjkr", r.FormValue("folder"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.NotEmpty(t, r.FormValue("signature"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "bukti.jpg", hdr.Filename)
		assert.Equal(t, []byte("jpegdata"), body)

		_, _ = w.Write([]byte(`{"public_id":"pjkr/abc","secure_url":"https://res.example/abc.jpg","format":"jpg"}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "pjkr")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.Upload(context.Background(), []byte("jpegdata"), "bukti.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/abc.jpg", res.SecureURL)
	assert.Equal(t, "pjkr/abc", res.PublicID)
}

func TestUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "wrong", "")
	c.BaseURL = srv.URL

	_, err := c.Upload(context.Background(), []byte("x"), "x.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestConfigured(t *testing.T) {
	assert.True(t, New("demo", "key", "secret", "").Configured())
	assert.False(t, New("", "key", "secret", "").Configured())

	var c *Client
	assert.False(t, c.Configured())
}
