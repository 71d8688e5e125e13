// Package vinportal drives the public recall-lookup portal through a
// headless browser. It is the primary per-VIN lookup collaborator.
package vinportal

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/model"
)

// Portal selectors. The portal is a single search page: a VIN input, a
// submit button, and a results region that renders either a campaign table
// or a "no recall information" banner.
const (
	selVINInput  = `#vin-search-input`
	selSubmit    = `#vin-search-submit`
	selResults   = `#recall-results`
	selCampaigns = `#recall-results .campaign-row`
)

// resultsJS pulls one string per campaign row: "NUMBER|DESCRIPTION". When
// the banner is shown instead, the banner text comes back as the only row.
const resultsJS = `(() => {
	const rows = document.querySelectorAll('#recall-results .campaign-row');
	if (rows.length > 0) {
		return Array.from(rows).map(r => {
			const num = r.querySelector('.campaign-number');
			const desc = r.querySelector('.campaign-description');
			return (num ? num.textContent.trim() : '') + '|' + (desc ? desc.textContent.trim() : '');
		});
	}
	const banner = document.querySelector('#recall-results .no-results');
	return banner ? [banner.textContent.trim() + '|'] : [];
})()`

// Client automates the portal. Not safe for concurrent use: one session,
// one in-flight lookup.
type Client struct {
	url      string
	headless bool

	browser     context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

// New creates an unconnected Client. Initialize starts the browser.
func New(url string, headless bool) *Client {
	return &Client{url: url, headless: headless}
}

// Initialize launches the browser and loads the search page.
func (c *Client) Initialize(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browser, cancelCtx := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browser,
		chromedp.Navigate(c.url),
		chromedp.WaitVisible(selVINInput, chromedp.ByQuery),
	); err != nil {
		cancelCtx()
		cancelAlloc()
		return eris.Wrap(err, "vinportal: load search page")
	}

	c.browser = browser
	c.cancelAlloc = cancelAlloc
	c.cancelCtx = cancelCtx
	zap.L().Debug("vinportal session started", zap.String("url", c.url))
	return nil
}

// Lookup searches one VIN and returns the campaigns the portal lists for
// it. Banner text ("No recall information" and friends) comes back as a
// normal entry; the caller's placeholder filtering decides what counts.
func (c *Client) Lookup(ctx context.Context, vin string) ([]model.RecallEntry, error) {
	if c.browser == nil {
		return nil, eris.New("vinportal: not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []string
	err := chromedp.Run(c.browser,
		chromedp.Navigate(c.url),
		chromedp.WaitVisible(selVINInput, chromedp.ByQuery),
		chromedp.SetValue(selVINInput, vin, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selResults, chromedp.ByQuery),
		chromedp.Evaluate(resultsJS, &raw),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "vinportal: lookup %s", vin)
	}

	return parseEntries(raw), nil
}

// Close tears the browser down.
func (c *Client) Close() error {
	if c.cancelCtx != nil {
		c.cancelCtx()
		c.cancelCtx = nil
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
		c.cancelAlloc = nil
	}
	c.browser = nil
	return nil
}

// parseEntries converts "NUMBER|DESCRIPTION" rows into entries. A
// description mentioning a satisfaction campaign flips the type.
func parseEntries(raw []string) []model.RecallEntry {
	entries := make([]model.RecallEntry, 0, len(raw))
	for _, line := range raw {
		number, desc, _ := strings.Cut(line, "|")
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		typ := model.TypeRecall
		if strings.Contains(strings.ToLower(desc), "satisfaction") ||
			strings.Contains(strings.ToLower(number), "satisfaction") {
			typ = model.TypeSatisfaction
		}
		entries = append(entries, model.RecallEntry{
			Number:        number,
			Type:          typ,
			DiscoveredVia: desc,
		})
	}
	return entries
}
