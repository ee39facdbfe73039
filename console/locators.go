package console

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/migcheck/console/internal/browser"
)

// Locators of the query console UI. These must match the console markup
// exactly.
var (
	locCollectionSelect  = browser.XPath(`//*[@id="source-databases"]`)
	locCollectionOptions = browser.XPath(`//*[@id="source-databases"]/option`)
	locUsername          = browser.ID("username")
	locExplore           = browser.XPath(`//*[@id="explore-source-btn"]`)
	locURIFilter         = browser.XPath(`//*[@id="filter-by-uri-input"]`)
	locSpinner           = browser.ID("server-side-spinner")
	locResultsSpace      = browser.ID("explore-results-space")
	locResultAnchors     = browser.XPath(`//*[@id="explore-results-space"]/table/tbody/tr[not(@class="results-header")]/td[2]/a`)
	locRenderAs          = browser.XPath(`//select[@class="render-as"]`)
	locRenderedDoc       = browser.XPath(`//div[@id="explore-file-doc"]/*/*[@class="resultItem"]/*/*/code`)
	locBack              = browser.ID("button-back")
	locBackClickable     = browser.XPath(`//*[@id="button-back" and @class="clickable"]`)
	locEditDoc           = browser.ID("explore-edit-doc-btn")
	locEditorLines       = browser.XPath(`//*[@id="explore-file-doc"]/div//*[@class="CodeMirror-lines"]`)
	locCancelEdit        = browser.ID("explore-cancel-doc-changes-btn")
)

// resultRowsSelector mirrors locResultAnchors for the HTML snapshot of the
// results space.
const resultRowsSelector = `table tr:not(.results-header) > td:nth-child(2) > a`

const renderAsText = "text"

func collectionOption(name string) browser.Locator {
	return browser.XPath(fmt.Sprintf(`//*[@id="source-databases"]/option[text() = %s]`, xpathLiteral(name)))
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds becomes a concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.ContainsRune(s, '"'):
		return `"` + s + `"`
	case !strings.ContainsRune(s, '\''):
		return `'` + s + `'`
	}
	var parts []string
	for i, chunk := range strings.Split(s, `"`) {
		if i > 0 {
			parts = append(parts, `'"'`)
		}
		if chunk != "" {
			parts = append(parts, `"`+chunk+`"`)
		}
	}
	return "concat(" + strings.Join(parts, ", ") + ")"
}
