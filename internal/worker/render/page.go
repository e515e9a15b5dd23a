package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Page is one remote browser execution context. Every interaction is an
// explicit round-trip; callers never assume in-page state and always inspect
// the returned result.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expression string, out any) error
	Close() error
}

// Browser owns a headless Chrome process and hands out pages.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	viewerURL   string
	logger      *slog.Logger
}

// NewBrowser starts a headless browser and materializes the embedded viewer
// page on disk so tabs can navigate to it.
func NewBrowser(logger *slog.Logger) (*Browser, error) {
	dir, err := os.MkdirTemp("", "thumbnail-viewer-*")
	if err != nil {
		return nil, fmt.Errorf("create viewer dir: %w", err)
	}

	viewerPath := filepath.Join(dir, "viewer.html")
	if err := os.WriteFile(viewerPath, viewerHTML, 0o644); err != nil {
		return nil, fmt.Errorf("write viewer page: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Info("headless browser allocator started",
		slog.String("viewer_path", viewerPath),
	)

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		viewerURL:   "file://" + viewerPath,
		logger:      logger,
	}, nil
}

// ViewerURL is the navigation target for new pages.
func (b *Browser) ViewerURL() string {
	return b.viewerURL
}

// NewPage opens a fresh tab. One tab serves one job.
func (b *Browser) NewPage() (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)

	// Force the browser process to start now, not on first action.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open browser tab: %w", err)
	}

	return &chromePage{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close tears down the browser process.
func (b *Browser) Close() {
	b.allocCancel()
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := mergeDeadline(p.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Poll("window.viewerReady === true", nil, chromedp.WithPollingTimeout(30*time.Second)),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Evaluate runs one expression in the page, awaiting promises, and decodes
// the JSON result into out.
func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	runCtx, cancel := mergeDeadline(p.ctx, ctx)
	defer cancel()

	var raw json.RawMessage
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(expression, &raw,
			func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
				return params.WithAwaitPromise(true).WithReturnByValue(true)
			},
		),
	)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode evaluate result: %w", err)
		}
	}
	return nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// mergeDeadline runs page actions on the tab's context while honoring the
// caller's deadline, if any.
func mergeDeadline(tabCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callCtx.Deadline(); ok {
		return context.WithDeadline(tabCtx, deadline)
	}
	return context.WithCancel(tabCtx)
}
