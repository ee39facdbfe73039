package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/migcheck/console/internal/browser"
)

// resultIDs reads the identifiers listed in the explore results table. The
// table is read from one HTML snapshot instead of one round trip per row.
// A missing results space reads as no results.
func (c *Client) resultIDs(ctx context.Context) ([]string, error) {
	html, err := c.drv.HTML(ctx, locResultsSpace)
	if errors.Is(err, browser.ErrElementMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseResultIDs(html)
}

func parseResultIDs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse results table: %w", err)
	}
	var ids []string
	doc.Find(resultRowsSelector).Each(func(_ int, a *goquery.Selection) {
		if id := strings.TrimSpace(a.Text()); id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}
