package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T, cfg config.PrintingConfig) *ChromedpConverter {
	t.Helper()
	// a remote allocator does not dial until the first Run
	cfg.RemoteURL = "ws://127.0.0.1:1/devtools/browser/test"
	c, err := NewChromedpConverter(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewChromedpConverter_Defaults(t *testing.T) {
	c := newTestConverter(t, config.PrintingConfig{})

	assert.Equal(t, defaultChromeTimeout, c.timeout)
	assert.Equal(t, defaultMarginInch, c.margin)
	assert.InDelta(t, 8.27, c.width, 0.001)
	assert.InDelta(t, 11.69, c.height, 0.001)
}

func TestNewChromedpConverter_Letter(t *testing.T) {
	c := newTestConverter(t, config.PrintingConfig{PaperSize: "letter", Timeout: 5 * time.Second, MarginInch: 0.5})

	assert.Equal(t, 5*time.Second, c.timeout)
	assert.Equal(t, 0.5, c.margin)
	assert.Equal(t, 8.5, c.width)
	assert.Equal(t, 11.0, c.height)
}

func TestNewChromedpConverter_InvalidPaperSize(t *testing.T) {
	_, err := NewChromedpConverter(config.PrintingConfig{PaperSize: "A0"}, nil)
	require.Error(t, err)

	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeInvalidPaperSize, renderErr.Code)
}

func TestChromedpConverter_PrintParams(t *testing.T) {
	c := newTestConverter(t, config.PrintingConfig{MarginInch: 0.25})

	params := c.printParams()
	assert.True(t, params.PrintBackground)
	assert.InDelta(t, 8.27, params.PaperWidth, 0.001)
	assert.InDelta(t, 11.69, params.PaperHeight, 0.001)
	assert.Equal(t, 0.25, params.MarginTop)
	assert.Equal(t, 0.25, params.MarginLeft)
}

func TestChromedpConverter_EmptyHTML(t *testing.T) {
	c := newTestConverter(t, config.PrintingConfig{})

	_, err := c.Convert(context.Background(), []byte("   "), "empty")
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
}

func TestWrapHTML(t *testing.T) {
	t.Run("wraps fragments", func(t *testing.T) {
		out := wrapHTML("<p>hi</p>", "A & B")
		assert.Contains(t, out, "<!DOCTYPE html>")
		assert.Contains(t, out, "<title>A &amp; B</title>")
		assert.Contains(t, out, "<body><p>hi</p></body>")
	})

	t.Run("keeps full documents", func(t *testing.T) {
		doc := "<!DOCTYPE html><html><body>x</body></html>"
		assert.Equal(t, doc, wrapHTML(doc, "ignored"))
	})
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := NewRenderError(ErrCodeRenderFailed, "print failed", cause)

	assert.Equal(t, "print failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", NewRenderError(ErrCodeRenderFailed, "plain", nil).Error())
}
