package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
	"items": [
		{
			"id": "123",
			"volumeInfo": {
				"title": "Test Book",
				"authors": ["Test Author"],
				"publishedDate": "2023",
				"pageCount": 100,
				"imageLinks": {"thumbnail": "http://example.com/img.jpg"},
				"industryIdentifiers": [{"type": "ISBN_13", "identifier": "9781234567890"}]
			}
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return newClient(server.URL), server
}

func TestSearch(t *testing.T) {
	t.Run("blank query issues no request", func(t *testing.T) {
		calls := 0
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})

		for _, q := range []string{"", "   ", "\t\n"} {
			got, err := client.Search(context.Background(), q, 10)
			require.NoError(t, err)
			assert.Empty(t, got)
		}
		assert.Equal(t, 0, calls)
	})

	t.Run("one encoded request per call", func(t *testing.T) {
		calls := 0
		var rawQuery string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			rawQuery = r.URL.RawQuery
			assert.Equal(t, "/volumes", r.URL.Path)
			assert.Equal(t, "test query", r.URL.Query().Get("q"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			assert.Equal(t, "relevance", r.URL.Query().Get("orderBy"))
			w.Write([]byte(searchFixture))
		})

		_, err := client.Search(context.Background(), "test query", 5)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Contains(t, rawQuery, "test+query")
	})

	t.Run("formats results", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(searchFixture))
		})

		got, err := client.Search(context.Background(), "test query", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)

		v := got[0]
		assert.Equal(t, "123", v.GoogleBooksID)
		assert.Equal(t, "Test Book", v.Title)
		assert.Equal(t, "Test Author", v.Author)
		require.NotNil(t, v.PublishedDate)
		assert.Equal(t, "2023", *v.PublishedDate)
		require.NotNil(t, v.PageCount)
		assert.Equal(t, 100, *v.PageCount)
		require.NotNil(t, v.CoverURL)
		assert.Equal(t, "https://example.com/img.jpg", *v.CoverURL)
		require.NotNil(t, v.ISBN)
		assert.Equal(t, "9781234567890", *v.ISBN)
		require.NotNil(t, v.ISBN13)
		assert.Equal(t, "9781234567890", *v.ISBN13)
		assert.Nil(t, v.ISBN10)
		assert.Equal(t, "en", v.Language)
	})

	t.Run("missing items is an empty result", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"kind": "books#volumes", "totalItems": 0}`))
		})

		got, err := client.Search(context.Background(), "obscure", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("non-2xx carries the status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Search(context.Background(), "boom", 10)
		require.Error(t, err)
		apiErr := &APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	})

	t.Run("unknown fields fall back", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": [{"id": "x", "volumeInfo": {}}]}`))
		})

		got, err := client.Search(context.Background(), "bare", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Unknown Title", got[0].Title)
		assert.Equal(t, "Unknown Author", got[0].Author)
		assert.Nil(t, got[0].CoverURL)
		assert.Nil(t, got[0].ISBN)
	})
}

func TestSearchByISBN(t *testing.T) {
	t.Run("blank isbn issues no request", func(t *testing.T) {
		calls := 0
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})

		got, err := client.SearchByISBN(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 0, calls)
	})

	t.Run("scopes the query to isbn", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "isbn:9781234567890", r.URL.Query().Get("q"))
			w.Write([]byte(searchFixture))
		})

		got, err := client.SearchByISBN(context.Background(), "9781234567890")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Test Book", got.Title)
	})

	t.Run("no match returns nil without error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		got, err := client.SearchByISBN(context.Background(), "0000000000")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestGetVolume(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes/abc", r.URL.Path)
		w.Write([]byte(`{"id": "abc", "volumeInfo": {"title": "By ID"}}`))
	})

	got, err := client.GetVolume(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.GoogleBooksID)
	assert.Equal(t, "By ID", got.Title)
}

func TestBestCoverImage(t *testing.T) {
	cases := []struct {
		name  string
		links *imageLinks
		want  string
	}{
		{"nil links", nil, ""},
		{"no variants", &imageLinks{}, ""},
		{
			"extra large wins over everything",
			&imageLinks{ExtraLarge: "http://x/xl.jpg", Large: "http://x/l.jpg", Thumbnail: "http://x/t.jpg"},
			"https://x/xl.jpg",
		},
		{
			"large beats medium",
			&imageLinks{Large: "http://x/l.jpg", Medium: "http://x/m.jpg"},
			"https://x/l.jpg",
		},
		{
			"medium beats small",
			&imageLinks{Medium: "http://x/m.jpg", Small: "http://x/s.jpg"},
			"https://x/m.jpg",
		},
		{
			"small beats thumbnail",
			&imageLinks{Small: "http://x/s.jpg", Thumbnail: "http://x/t.jpg"},
			"https://x/s.jpg",
		},
		{
			"thumbnail beats small thumbnail",
			&imageLinks{Thumbnail: "http://x/t.jpg", SmallThumbnail: "http://x/st.jpg"},
			"https://x/t.jpg",
		},
		{
			"small thumbnail as the last resort",
			&imageLinks{SmallThumbnail: "http://x/st.jpg"},
			"https://x/st.jpg",
		},
		{
			"already https stays untouched",
			&imageLinks{Thumbnail: "https://x/t.jpg"},
			"https://x/t.jpg",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := bestCoverImage(tc.links)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
			assert.True(t, strings.HasPrefix(*got, "https://"))
		})
	}
}

func TestISBNExtraction(t *testing.T) {
	both := []industryIdentifier{
		{Type: "ISBN_10", Identifier: "1455586692"},
		{Type: "ISBN_13", Identifier: "9781455586691"},
	}
	only10 := []industryIdentifier{{Type: "ISBN_10", Identifier: "1455586692"}}
	other := []industryIdentifier{{Type: "OTHER", Identifier: "OCLC:12345"}}

	t.Run("prefers isbn-13", func(t *testing.T) {
		got := isbnAny(both)
		require.NotNil(t, got)
		assert.Equal(t, "9781455586691", *got)
	})

	t.Run("falls back to isbn-10", func(t *testing.T) {
		got := isbnAny(only10)
		require.NotNil(t, got)
		assert.Equal(t, "1455586692", *got)
	})

	t.Run("falls back to any identifier", func(t *testing.T) {
		got := isbnAny(other)
		require.NotNil(t, got)
		assert.Equal(t, "OCLC:12345", *got)
	})

	t.Run("nothing to extract", func(t *testing.T) {
		assert.Nil(t, isbnAny(nil))
		assert.Nil(t, isbnByType(nil, "ISBN_13"))
	})

	t.Run("typed getters", func(t *testing.T) {
		got13 := isbnByType(both, "ISBN_13")
		require.NotNil(t, got13)
		assert.Equal(t, "9781455586691", *got13)

		got10 := isbnByType(both, "ISBN_10")
		require.NotNil(t, got10)
		assert.Equal(t, "1455586692", *got10)

		assert.Nil(t, isbnByType(only10, "ISBN_13"))
	})
}
