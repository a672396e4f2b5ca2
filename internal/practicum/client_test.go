package practicum

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	logx "reviewbot/pkg/logx"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := New(Config{Endpoint: endpoint, Token: "secret", Timeout: 2 * time.Second, UserAgent: "reviewbot/test"}, logx.Nop())
	require.NoError(t, err)
	return c
}

func TestFetchSendsAuthAndTimestamp(t *testing.T) {
	t.Parallel()
	var gotAuth, gotFrom, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFrom = r.URL.Query().Get("from_date")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current_date": 1000, "homeworks": [{"homework_name": "proj1", "status": "approved"}]}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(t, srv.URL).Fetch(context.Background(), 1234)
	require.NoError(t, err)
	require.Equal(t, "OAuth secret", gotAuth)
	require.Equal(t, "1234", gotFrom)
	require.Equal(t, "reviewbot/test", gotUA)

	obj, ok := payload.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 1000, obj["current_date"])
	require.Len(t, obj["homeworks"], 1)
}

func TestFetchZeroTimestampUsesNow(t *testing.T) {
	t.Parallel()
	var gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("from_date")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.now = func() time.Time { return time.Unix(777, 0) }
	_, err := c.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "777", gotFrom)
}

func TestFetchNon2xxIsUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background(), 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnreachableEndpoint))
	require.False(t, errors.Is(err, ErrFetchFailure))
	require.Contains(t, err.Error(), srv.URL)
	require.Contains(t, err.Error(), "503")
}

func TestFetchTransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	payload, err := newTestClient(t, url).Fetch(context.Background(), 1)
	require.Nil(t, payload)
	require.True(t, errors.Is(err, ErrFetchFailure), "err = %v", err)
}

func TestFetchBadJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background(), 1)
	require.True(t, errors.Is(err, ErrFetchFailure), "err = %v", err)
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(t, srv.URL).Fetch(ctx, 1)
	require.True(t, errors.Is(err, ErrFetchFailure), "err = %v", err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Token: " "}, logx.Nop())
	require.Error(t, err)

	c, err := New(Config{Token: "x"}, logx.Logger{})
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoint, c.Endpoint())

	_, err = New(Config{Token: "x", Endpoint: "::not a url"}, logx.Nop())
	require.Error(t, err)
}
