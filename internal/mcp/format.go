package mcp

import (
	"fmt"
	"strings"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/pdf"
	"github.com/merchantsons/invoicegen/internal/render"
)

func formatValidationError(err *invoice.ValidationError) string {
	var b strings.Builder
	b.WriteString(invoice.MissingFieldsMessage + "\n")
	for _, f := range err.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Field, f.Message)
	}
	return b.String()
}

func formatGenerateResult(req invoice.Request, result *render.Result, saved *pdf.InvoiceSaveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice generated: %s\n", saved.Path)
	fmt.Fprintf(&b, "Invoice Number: %s\n", req.InvoiceNumber)
	fmt.Fprintf(&b, "Date: %s\n", req.FormattedDate())
	fmt.Fprintf(&b, "Items: %d\n", len(req.Items))
	fmt.Fprintf(&b, "Pages: %d\n", result.Pages)
	fmt.Fprintf(&b, "Size: %d bytes\n", saved.Size)
	fmt.Fprintf(&b, "Total Amount Due: %s\n", result.GrandTotal)
	fmt.Fprintf(&b, "Amount in Words: %s\n", result.AmountInWords)
	if result.LogoError != nil {
		fmt.Fprintf(&b, "Warning: logo was not embedded: %v\n", result.LogoError)
	}
	return b.String()
}

func formatInspectResult(result *pdf.InspectResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice: %s\n", result.Path)
	fmt.Fprintf(&b, "Pages: %d\n", result.Pages)
	fmt.Fprintf(&b, "Size: %d bytes\n", result.Size)
	fmt.Fprintf(&b, "Images: %d\n", result.ImageCount)
	if result.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", result.Title)
	}
	if result.Creator != "" {
		fmt.Fprintf(&b, "Creator: %s\n", result.Creator)
	}
	b.WriteString("\nContent:\n")
	b.WriteString(result.Text())
	return b.String()
}

func formatListResult(result *pdf.InvoiceListResult) string {
	var b strings.Builder
	if result.SearchQuery != "" {
		fmt.Fprintf(&b, "Found %d invoice(s) matching %q in %s\n", result.TotalCount, result.SearchQuery, result.Directory)
	} else {
		fmt.Fprintf(&b, "Found %d invoice(s) in %s\n", result.TotalCount, result.Directory)
	}
	for i, file := range result.Files {
		fmt.Fprintf(&b, "%d. %s (%d bytes, modified %s)\n", i+1, file.Name, file.Size, file.ModifiedTime)
	}
	return b.String()
}

// maxListedFiles limits the directory listing in the server info
const maxListedFiles = 10

func (s *Server) formatServerInfo(list *pdf.InvoiceListResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	fmt.Fprintf(&b, "Output Directory: %s\n", s.pdfService.OutputDirectory())
	fmt.Fprintf(&b, "Max Logo Size: %d KB\n\n", s.config.MaxLogoSize/1024)

	if list.TotalCount == 0 {
		b.WriteString("Generated Invoices: none yet\n\n")
	} else {
		fmt.Fprintf(&b, "Generated Invoices (%d):\n", list.TotalCount)
		for i, file := range list.Files {
			if i >= maxListedFiles {
				fmt.Fprintf(&b, "   ... and %d more files\n", list.TotalCount-maxListedFiles)
				break
			}
			fmt.Fprintf(&b, "   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		b.WriteString("\n")
	}

	b.WriteString("Available Tools:\n")
	for _, t := range s.tools() {
		fmt.Fprintf(&b, "\n- %s\n", t.tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", t.tool.Description)
		fmt.Fprintf(&b, "  Usage: %s\n", t.usage)
	}
	return b.String()
}
