package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/merchantsons/invoicegen/internal/config"
	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/logo"
	"github.com/merchantsons/invoicegen/internal/pdf"
	"github.com/merchantsons/invoicegen/internal/render"
)

// Tool names
const (
	ToolGenerate   = "invoice_generate"
	ToolInspect    = "invoice_inspect"
	ToolList       = "invoice_list"
	ToolServerInfo = "invoice_server_info"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	renderer   *render.Renderer
	logger     *zap.Logger
	mcpServer  *server.MCPServer
	now        func() time.Time
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, renderer *render.Renderer, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		renderer:   renderer,
		logger:     logger,
		mcpServer:  mcpServer,
		now:        time.Now,
	}

	s.registerTools()

	return s, nil
}

// toolEntry pairs a tool with the help text reported by invoice_server_info
type toolEntry struct {
	tool    mcp.Tool
	usage   string
	handler server.ToolHandlerFunc
}

func (s *Server) tools() []toolEntry {
	return []toolEntry{
		{
			tool: mcp.NewTool(
				ToolGenerate,
				mcp.WithDescription("Render a styled PDF invoice and save it as Invoice_<invoice_number>.pdf in the output directory"),
				mcp.WithString("company_name", mcp.Required(), mcp.Description("Name of the issuing company")),
				mcp.WithString("customer_name", mcp.Required(), mcp.Description("Name of the billed customer")),
				mcp.WithString("address", mcp.Required(), mcp.Description("Customer address; may span several lines")),
				mcp.WithString("invoice_number", mcp.Required(), mcp.Description("Invoice number printed on the document")),
				mcp.WithString("date", mcp.Description("Invoice date as YYYY-MM-DD (default: today)")),
				mcp.WithArray("items",
					mcp.Required(),
					mcp.Description("Line items in print order"),
					mcp.Items(map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":     map[string]any{"type": "string"},
							"quantity": map[string]any{"type": "integer", "minimum": 1},
							"price":    map[string]any{"type": "number", "minimum": 0},
						},
						"required": []string{"name", "quantity", "price"},
					}),
				),
				mcp.WithString("text_color", mcp.Description("Text color as #rrggbb (default "+invoice.DefaultTextColor+")")),
				mcp.WithString("header_color", mcp.Description("Table header color as #rrggbb (default "+invoice.DefaultHeaderColor+")")),
				mcp.WithString("background_color", mcp.Description("Page background color as #rrggbb (default "+invoice.DefaultBackgroundColor+")")),
				mcp.WithString("logo_path", mcp.Description("Optional logo image inside the output directory")),
			),
			usage:   "Provide the parties, invoice number and at least one item; totals and amount in words are computed",
			handler: s.handleGenerate,
		},
		{
			tool: mcp.NewTool(
				ToolInspect,
				mcp.WithDescription("Validate a generated invoice and return its page count and text"),
				mcp.WithString("path", mcp.Required(), mcp.Description("Invoice file name or path inside the output directory")),
			),
			usage:   "Use after invoice_generate to check what was printed",
			handler: s.handleInspect,
		},
		{
			tool: mcp.NewTool(
				ToolList,
				mcp.WithDescription("List generated invoices in the output directory, newest first"),
				mcp.WithString("query", mcp.Description("Optional case-insensitive filter on the file name")),
			),
			usage:   "Filter with part of an invoice number, e.g. query=INV-00",
			handler: s.handleList,
		},
		{
			tool: mcp.NewTool(
				ToolServerInfo,
				mcp.WithDescription("Get server information, available tools and the output directory"),
			),
			usage:   "Call first to learn where invoices are written",
			handler: s.handleServerInfo,
		},
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	for _, t := range s.tools() {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
}

// itemArgument is one element of the items argument
type itemArgument struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Server) handleGenerate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.requestFromArguments(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := invoice.Validate(req); err != nil {
		var verr *invoice.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(formatValidationError(verr)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.Normalize()

	result, err := s.renderer.RenderResult(req)
	if err != nil {
		s.logger.Error("invoice rendering failed", zap.String("invoice_number", req.InvoiceNumber), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to render invoice: %v", err)), nil
	}

	saved, err := s.pdfService.SaveInvoice(pdf.InvoiceSaveRequest{
		Filename: invoice.Filename(req.InvoiceNumber),
		Data:     result.PDF,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("invoice generated",
		zap.String("invoice_number", req.InvoiceNumber),
		zap.String("path", saved.Path),
		zap.Int("items", len(req.Items)))

	return mcp.NewToolResultText(formatGenerateResult(req, result, saved)), nil
}

// requestFromArguments converts tool arguments into a renderer request
func (s *Server) requestFromArguments(request mcp.CallToolRequest) (invoice.Request, error) {
	req := invoice.Request{
		CompanyName:   request.GetString("company_name", ""),
		CustomerName:  request.GetString("customer_name", ""),
		Address:       request.GetString("address", ""),
		InvoiceNumber: request.GetString("invoice_number", ""),
		Date:          s.now(),
	}

	if date := strings.TrimSpace(request.GetString("date", "")); date != "" {
		parsed, err := time.Parse(invoice.DateLayout, date)
		if err != nil {
			return req, fmt.Errorf("date must be formatted as YYYY-MM-DD: %s", date)
		}
		req.Date = parsed
	}

	items, err := parseItems(request.GetArguments()["items"])
	if err != nil {
		return req, err
	}
	req.Items = items

	req.TextColor, req.HeaderColor, req.BackgroundColor = invoice.DefaultColors()
	colors := []struct {
		key string
		dst *invoice.RGB
	}{
		{"text_color", &req.TextColor},
		{"header_color", &req.HeaderColor},
		{"background_color", &req.BackgroundColor},
	}
	for _, c := range colors {
		value := strings.TrimSpace(request.GetString(c.key, ""))
		if value == "" {
			continue
		}
		rgb, err := invoice.ParseHex(value)
		if err != nil {
			return req, fmt.Errorf("%s: %w", c.key, err)
		}
		*c.dst = rgb
	}

	if logoPath := strings.TrimSpace(request.GetString("logo_path", "")); logoPath != "" {
		data, err := s.pdfService.ReadFile(logoPath, s.config.MaxLogoSize)
		if err != nil {
			return req, fmt.Errorf("logo: %w", err)
		}
		png, err := logo.Process(bytes.NewReader(data), s.config.MaxLogoSize)
		if err != nil {
			return req, fmt.Errorf("logo: %w", err)
		}
		req.Logo = png
	}

	return req, nil
}

func parseItems(raw any) ([]invoice.LineItem, error) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	var args []itemArgument
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("items must be an array of {name, quantity, price}: %w", err)
	}

	items := make([]invoice.LineItem, 0, len(args))
	for i, a := range args {
		price, err := invoice.NormalizePrice(a.Price)
		if err != nil {
			return nil, fmt.Errorf("items[%d].price: %w", i, err)
		}
		items = append(items, invoice.LineItem{Name: a.Name, Quantity: a.Quantity, UnitPrice: price})
	}
	return items, nil
}

func (s *Server) handleInspect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.InspectFile(pdf.InvoiceInspectRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatInspectResult(result)), nil
}

func (s *Server) handleList(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ListInvoices(pdf.InvoiceListRequest{Query: request.GetString("query", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatListResult(result)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.pdfService.ListInvoices(pdf.InvoiceListRequest{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfo(list)), nil
}

// Run serves the MCP tools over stdin and stdout until ctx is cancelled or
// stdin is closed.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves the MCP tools over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving invoice tools over stdio",
		zap.String("output_directory", s.pdfService.OutputDirectory()))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
