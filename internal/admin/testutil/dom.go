package testutil

import (
	"net/http"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// ParseHTML reads the response body into a goquery document and closes it.
func ParseHTML(t testing.TB, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err, "parse html")
	return doc
}
