package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/erp/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultMarginInch    = 0.4
)

// paper dimensions in inches
var paperSizes = map[string][2]float64{
	"A4":     {8.27, 11.69},
	"LETTER": {8.5, 11},
}

// ChromedpConverter prints HTML to PDF using the Chrome DevTools Protocol
type ChromedpConverter struct {
	timeout     time.Duration
	width       float64
	height      float64
	margin      float64
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpConverter creates a converter from the printing config.
// A RemoteURL attaches to a running browser, otherwise Chrome is launched on demand.
func NewChromedpConverter(cfg config.PrintingConfig, logger *zap.Logger) (*ChromedpConverter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := strings.ToUpper(strings.TrimSpace(cfg.PaperSize))
	if size == "" {
		size = "A4"
	}
	dims, ok := paperSizes[size]
	if !ok {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "unsupported paper size: "+cfg.PaperSize, nil)
	}

	c := &ChromedpConverter{
		timeout: cfg.Timeout,
		width:   dims[0],
		height:  dims[1],
		margin:  cfg.MarginInch,
		logger:  logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultChromeTimeout
	}
	if c.margin <= 0 {
		c.margin = defaultMarginInch
	}

	if cfg.RemoteURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg.ExecPath)...)
	}
	return c, nil
}

func allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.NoSandbox,
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// Convert implements HTMLConverter
func (c *ChromedpConverter) Convert(ctx context.Context, doc []byte, title string) ([]byte, error) {
	if strings.TrimSpace(string(doc)) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(c.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	content := wrapHTML(string(doc), title)
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, content).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := c.printParams().Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", c.timeout), err)
		}
		c.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}
	return pdf, nil
}

func (c *ChromedpConverter) printParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(c.width).
		WithPaperHeight(c.height).
		WithMarginTop(c.margin).
		WithMarginRight(c.margin).
		WithMarginBottom(c.margin).
		WithMarginLeft(c.margin).
		WithPreferCSSPageSize(false)
}

// Close shuts down the browser allocator
func (c *ChromedpConverter) Close() error {
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

// wrapHTML turns a fragment into a full page; complete documents pass through
func wrapHTML(fragment, title string) string {
	lower := strings.ToLower(fragment)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return fragment
	}
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(fragment)
	b.WriteString("</body></html>")
	return b.String()
}

var _ HTMLConverter = (*ChromedpConverter)(nil)
