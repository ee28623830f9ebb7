package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/send"
)

func openStore(t *testing.T, max int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), max)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRecentNewestFirst(t *testing.T) {
	store := openStore(t, 10)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, Entry{ID: "1", ExecutedAt: base, Method: "GET", URL: "https://a"}))
	require.NoError(t, store.Append(ctx, Entry{
		ID:         "2",
		ExecutedAt: base.Add(time.Minute),
		Method:     "POST",
		URL:        "https://b",
		StatusCode: 201,
		Duration:   150 * time.Millisecond,
		Timing:     &TimingSummary{TTFB: 100 * time.Millisecond, Total: 150 * time.Millisecond},
	}))
	require.NoError(t, store.Append(ctx, Entry{ID: "3", ExecutedAt: base.Add(-time.Minute), Method: "GET", URL: "https://c"}))

	entries, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []string{"2", "1", "3"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	newest := entries[0]
	require.True(t, newest.ExecutedAt.Equal(base.Add(time.Minute)))
	require.Equal(t, 150*time.Millisecond, newest.Duration)
	require.NotNil(t, newest.Timing)
	require.Equal(t, 100*time.Millisecond, newest.Timing.TTFB)
	require.Nil(t, entries[1].Timing)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStoreTrimsToMaxEntries(t *testing.T) {
	store := openStore(t, 2)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Entry{
			ExecutedAt: base.Add(time.Duration(i) * time.Second),
			Method:     "GET",
			URL:        "https://example.com/" + string(rune('a'+i)),
		}))
	}

	entries, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "https://example.com/e", entries[0].URL)
	require.Equal(t, "https://example.com/d", entries[1].URL)
	require.NotEmpty(t, entries[0].ID)
}

func TestStoreClear(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Entry{Method: "GET", URL: "https://x"}))
	require.NoError(t, store.Clear(ctx))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecordFromResult(t *testing.T) {
	store := openStore(t, 10)

	ok := send.Result{
		ID:          1,
		RequestName: "list",
		Method:      request.MethodGet,
		DisplayURL:  "https://api/items?key=••••••••",
		Environment: "dev",
		StartedAt:   time.Now().Add(-time.Second),
		Response: &httpclient.Response{
			StatusCode: 200,
			StatusText: "OK",
			SizeBytes:  3000,
			Body:       httpclient.Body{Kind: httpclient.BodyText, Text: strings.Repeat("x", 3000)},
			Timing:     httpclient.Timing{Total: 42 * time.Millisecond},
		},
	}
	failed := send.Result{
		ID:         2,
		Method:     request.MethodPost,
		DisplayURL: "https://down",
		StartedAt:  time.Now(),
		Err:        errdef.Wrap(errdef.CodeHTTP, errors.New("connection refused"), "perform request"),
	}
	require.NoError(t, store.Record(ok))
	require.NoError(t, store.Record(failed))

	entries, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.True(t, entries[0].Failed())
	require.Equal(t, "perform request: connection refused", entries[0].Error)

	got := entries[1]
	require.Equal(t, "list", got.RequestName)
	require.Equal(t, "200 OK", got.Status)
	require.Equal(t, "dev", got.Environment)
	require.Equal(t, 42*time.Millisecond, got.Duration)
	require.Contains(t, got.URL, "••••••••")
	require.Equal(t, snippetLimit+1, len([]rune(got.BodySnippet)))
}
