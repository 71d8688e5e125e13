// Package earegistry drives the internal EA-number registry through a
// browser session. Sign-in is manual: the registry is opened headful and
// the operator completes authentication while the client polls for it.
package earegistry

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/model"
)

const (
	selSearchInput = `#registry-search`
	selSearchGo    = `#registry-search-go`
	selResult      = `#registry-result`
)

// authProbeJS reports whether the signed-in chrome is present. The registry
// renders a sign-out link only for authenticated sessions.
const authProbeJS = `document.querySelector('#sign-out-link') !== null`

// resultJS reads the resolution outcome: the EA number cell when the search
// matched, empty string when the not-found notice is shown.
const resultJS = `(() => {
	const ea = document.querySelector('#registry-result .ea-number');
	if (ea) return ea.textContent.trim();
	return '';
})()`

const authPollInterval = 2 * time.Second

// Client automates the registry. Not safe for concurrent use.
type Client struct {
	url      string
	headless bool

	browser     context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

// New creates an unconnected Client. Headless defaults off in config so a
// human can complete the sign-in.
func New(url string, headless bool) *Client {
	return &Client{url: url, headless: headless}
}

// Initialize launches the browser and opens the registry.
func (c *Client) Initialize(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browser, cancelCtx := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browser,
		chromedp.Navigate(c.url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	); err != nil {
		cancelCtx()
		cancelAlloc()
		return eris.Wrap(err, "earegistry: open registry")
	}

	c.browser = browser
	c.cancelAlloc = cancelAlloc
	c.cancelCtx = cancelCtx
	zap.L().Debug("earegistry session started", zap.String("url", c.url))
	return nil
}

// CheckAuthenticated probes the DOM for the signed-in state.
func (c *Client) CheckAuthenticated(ctx context.Context) (bool, error) {
	if c.browser == nil {
		return false, eris.New("earegistry: not initialized")
	}
	var authed bool
	if err := chromedp.Run(c.browser, chromedp.Evaluate(authProbeJS, &authed)); err != nil {
		return false, eris.Wrap(err, "earegistry: auth probe")
	}
	return authed, nil
}

// Authenticate waits for the operator to sign in, polling the DOM until the
// session is authenticated or ctx expires. Returns false on timeout.
func (c *Client) Authenticate(ctx context.Context) (bool, error) {
	if c.browser == nil {
		return false, eris.New("earegistry: not initialized")
	}
	zap.L().Info("waiting for manual registry sign-in", zap.String("url", c.url))

	ticker := time.NewTicker(authPollInterval)
	defer ticker.Stop()

	for {
		authed, err := c.CheckAuthenticated(ctx)
		if err != nil {
			return false, err
		}
		if authed {
			zap.L().Info("registry sign-in detected")
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

// Resolve searches one recall number and returns whether the registry
// tracks it and under which EA number.
func (c *Client) Resolve(ctx context.Context, recallNumber string) (model.EaInfo, error) {
	info := model.EaInfo{Number: recallNumber}
	if c.browser == nil {
		return info, eris.New("earegistry: not initialized")
	}
	if err := ctx.Err(); err != nil {
		return info, err
	}

	var ea string
	err := chromedp.Run(c.browser,
		chromedp.Navigate(c.url),
		chromedp.WaitVisible(selSearchInput, chromedp.ByQuery),
		chromedp.SetValue(selSearchInput, recallNumber, chromedp.ByQuery),
		chromedp.Click(selSearchGo, chromedp.ByQuery),
		chromedp.WaitVisible(selResult, chromedp.ByQuery),
		chromedp.Evaluate(resultJS, &ea),
	)
	if err != nil {
		return info, eris.Wrapf(err, "earegistry: resolve %s", recallNumber)
	}

	if ea = strings.TrimSpace(ea); ea != "" {
		info.Exists = true
		info.EANumber = ea
	}
	return info, nil
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
