// Package printing renders invoices and quotations to PDF.
//
// A document is first rendered to HTML from an embedded html/template, then a
// headless Chrome instance driven by chromedp prints the HTML to PDF.
//
//	renderer := printing.NewDocumentRenderer(template, converter)
//	pdf, err := renderer.RenderPDF(ctx, view)
package printing
