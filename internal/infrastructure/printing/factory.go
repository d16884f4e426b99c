package printing

import (
	"context"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrCodePrintingDisabled is returned by every render when printing is switched off
const ErrCodePrintingDisabled = appbilling.CodePrintingDisabled

// NewConverter returns the chromedp converter, or one that rejects every
// render when printing is disabled in cfg
func NewConverter(cfg config.PrintingConfig, logger *zap.Logger) (HTMLConverter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Warn("PDF printing disabled")
		return disabledConverter{}, nil
	}
	return NewChromedpConverter(cfg, logger)
}

type disabledConverter struct{}

func (disabledConverter) Convert(context.Context, []byte, string) ([]byte, error) {
	return nil, NewRenderError(ErrCodePrintingDisabled, "PDF printing is disabled", appbilling.ErrPrintingDisabled)
}

func (disabledConverter) Close() error { return nil }
