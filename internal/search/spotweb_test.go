package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Spotweb</title>
    %s
  </channel>
</rss>`

func rssItemXML(title, nzbURL string) string {
	return fmt.Sprintf(`<item>
  <title>%s</title>
  <category>7020</category>
  <pubDate>Sat, 01 Mar 2025 10:00:00 +0100</pubDate>
  <enclosure url="%s" length="1" type="application/x-nzb"/>
</item>`, title, nzbURL)
}

func TestSearch_FindsMatchingCandidate(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "search", r.URL.Query().Get("t"))
		assert.Equal(t, "7020", r.URL.Query().Get("cat"))

		fmt.Fprintf(w, rssTemplate,
			rssItemXML("Jens Lapidus - Grande finale NL epub", "http://idx/nzb/1")+
				rssItemXML("Iemand Anders - Ander boek", "http://idx/nzb/2"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "7020")
	cands, err := c.Search(context.Background(), "Jens Lapidus", "Grande finale")
	require.NoError(t, err)

	require.NotEmpty(t, cands)
	assert.Equal(t, "http://idx/nzb/1", cands[0].NZBURL)
	// The non-matching release is filtered out.
	for _, cand := range cands {
		assert.NotEqual(t, "http://idx/nzb/2", cand.NZBURL)
	}
	// All query variants are tried, most specific first.
	assert.Equal(t, "Jens Lapidus Grande finale", queries[0])
}

func TestSearch_DeduplicatesAcrossVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every variant returns the same release.
		fmt.Fprintf(w, rssTemplate, rssItemXML("Jens Lapidus - Grande finale", "http://idx/nzb/1"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "7020")
	cands, err := c.Search(context.Background(), "Jens Lapidus", "Grande finale")
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestSearch_NoMatchIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "7020")
	cands, err := c.Search(context.Background(), "X", "Y")
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearch_ServerErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "7020")
	_, err := c.Search(context.Background(), "X", "Y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSearch_MalformedXMLReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml <<<")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "7020")
	_, err := c.Search(context.Background(), "X", "Y")
	require.Error(t, err)
}

func TestSearch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, "")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "k", "7020")
	_, err := c.Search(ctx, "X", "Y")
	require.Error(t, err)
}
