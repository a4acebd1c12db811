// Package capture renders the week view to a PNG through headless Chromium.
// The image is what /preview.png serves; it doubles as a smoke check that
// the UI actually renders the fetched week.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default viewport for the weekly grid. Wide enough for seven day columns,
// tall enough for the visible hour range at the default hour height.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 1160
	DefaultTimeout = 30 * time.Second
)

// Options parameterizes one screenshot capture.
type Options struct {
	// URL of the locally served week page, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Username and Password are sent as HTTP Basic Auth when the local
	// server has it enabled. Both empty means no credentials.
	Username string
	Password string

	// Width and Height are the viewport in pixels; zero means the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture; zero means DefaultTimeout.
	Timeout time.Duration
}

// WeekPNG navigates headless Chromium to the week page, waits for the page
// to signal that the grid is rendered, and writes a PNG screenshot.
//
// The page marks completion by setting data-ready="true" on its root
// element once /api/week has been fetched and drawn; capturing before that
// would screenshot an empty grid.
func WeekPNG(parentCtx context.Context, opts Options) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if opts.Username != "" || opts.Password != "" {
		tasks = append(tasks, setBasicAuthHeader(opts.Username, opts.Password))
	}
	var png []byte
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay for final paints.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: create output directory: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}

// setBasicAuthHeader injects an Authorization header into every request the
// page makes, so capture works against a credential-protected local server.
func setBasicAuthHeader(user, pass string) chromedp.Action {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		headers := network.Headers{"Authorization": "Basic " + token}
		return network.SetExtraHTTPHeaders(headers).Do(ctx)
	})
}
