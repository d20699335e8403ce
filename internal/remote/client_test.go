package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"item_id":"p1","name":"Aspirin","description":"Pain reliever","price":5.99,"has_image":true,"image_mime":"image/png"},
			{"item_id":"p2","name":"Vitamin C","description":null,"price":2.5,"has_image":false}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	items, err := c.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "Aspirin", items[0].Name)
	assert.Equal(t, "Pain reliever", items[0].Description)
	assert.Equal(t, "5.99", items[0].Price.String())
	assert.True(t, items[0].HasImage)
	assert.Equal(t, "image/png", items[0].ImageMime)

	assert.Equal(t, "p2", items[1].ID)
	assert.Empty(t, items[1].Description, "null description decodes to empty")
	assert.False(t, items[1].HasImage)
}

func TestFetchCatalog_UnknownFieldsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"item_id":"p1","name":"Aspirin","price":1,"stock":{"count":3}}]`))
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL, srv.Client()).FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
}

func TestFetchCatalog_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).FetchCatalog(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchCatalog_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).FetchCatalog(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchCatalog_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, nil).FetchCatalog(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestImageURL(t *testing.T) {
	c := NewClient("https://api.example.com/", nil)
	assert.Equal(t, "https://api.example.com/items/p1/image", c.ImageURL("p1"))
}
