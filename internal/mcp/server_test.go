package mcp

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/merchantsons/invoicegen/internal/config"
	"github.com/merchantsons/invoicegen/internal/pdf"
	"github.com/merchantsons/invoicegen/internal/render"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeStdio
	cfg.OutputDirectory = dir
	cfg.ServerName = "test-server"

	pdfService, err := pdf.NewService(cfg.MaxFileSize, dir)
	if err != nil {
		t.Fatalf("Failed to create PDF service: %v", err)
	}
	server, err := NewServer(cfg, pdfService, render.NewRenderer(render.Config{}), nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	server.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return server, dir
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func generateArgs() map[string]interface{} {
	return map[string]interface{}{
		"company_name":   "Acme Corp",
		"customer_name":  "Jane Doe",
		"address":        "1 Main St",
		"invoice_number": "INV-7",
		"date":           "2024-03-01",
		"items": []interface{}{
			map[string]interface{}{"name": "Widget", "quantity": float64(2), "price": 9.99},
			map[string]interface{}{"name": "Gadget", "quantity": float64(1), "price": 5},
		},
	}
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.OutputDirectory = dir
	pdfService, err := pdf.NewService(cfg.MaxFileSize, dir)
	if err != nil {
		t.Fatalf("Failed to create PDF service: %v", err)
	}
	renderer := render.NewRenderer(render.Config{})

	tests := []struct {
		name        string
		cfg         *config.Config
		service     *pdf.Service
		renderer    *render.Renderer
		expectError bool
	}{
		{name: "valid", cfg: cfg, service: pdfService, renderer: renderer},
		{name: "nil config", service: pdfService, renderer: renderer, expectError: true},
		{name: "nil service", cfg: cfg, renderer: renderer, expectError: true},
		{name: "nil renderer", cfg: cfg, service: pdfService, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.cfg, tt.service, tt.renderer, nil)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.mcpServer == nil {
				t.Error("mcpServer should be initialized")
			}
		})
	}
}

func TestServer_HandleGenerate(t *testing.T) {
	server, dir := newTestServer(t)

	result, err := server.handleGenerate(context.Background(), callRequest(generateArgs()))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	text := extractTextFromResult(result)
	for _, want := range []string{
		"Invoice_INV-7.pdf",
		"Total Amount Due: $24.98",
		"Amount in Words: Twenty-four dollars, ninety-eight cents",
		"Date: 2024-03-01",
		"Items: 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("result should contain %q, got: %s", want, text)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "Invoice_INV-7.pdf"))
	if err != nil {
		t.Fatalf("invoice not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("written file is not a PDF")
	}
}

func TestServer_HandleGenerate_RoundsPriceToCents(t *testing.T) {
	server, _ := newTestServer(t)
	args := generateArgs()
	args["items"] = []interface{}{
		map[string]interface{}{"name": "Screw", "quantity": float64(1000), "price": 0.005},
	}

	result, err := server.handleGenerate(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}
	if text := extractTextFromResult(result); !strings.Contains(text, "Total Amount Due: $10.00") {
		t.Errorf("total should use the rounded unit price, got: %s", text)
	}

	items, err := parseItems(args["items"])
	if err != nil {
		t.Fatalf("parseItems failed: %v", err)
	}
	if got := items[0].UnitPrice.StringFixed(2); got != "0.01" {
		t.Errorf("unit price = %s, want 0.01", got)
	}
	if got := items[0].LineTotal().StringFixed(2); got != "10.00" {
		t.Errorf("line total = %s, want 10.00", got)
	}
}

func TestServer_HandleGenerate_DefaultDate(t *testing.T) {
	server, _ := newTestServer(t)
	args := generateArgs()
	delete(args, "date")

	result, _ := server.handleGenerate(context.Background(), callRequest(args))
	if text := extractTextFromResult(result); !strings.Contains(text, "Date: 2024-05-01") {
		t.Errorf("expected today's date, got: %s", text)
	}
}

func TestServer_HandleGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{
			name:   "missing company",
			mutate: func(a map[string]interface{}) { a["company_name"] = "  " },
			want:   "company_name: This field is required",
		},
		{
			name:   "no items",
			mutate: func(a map[string]interface{}) { delete(a, "items") },
			want:   "Please fill in all fields and add at least one item.",
		},
		{
			name: "zero quantity",
			mutate: func(a map[string]interface{}) {
				a["items"] = []interface{}{map[string]interface{}{"name": "Widget", "quantity": float64(0), "price": 1}}
			},
			want: "items[0].quantity",
		},
		{
			name: "price with huge exponent",
			mutate: func(a map[string]interface{}) {
				a["items"] = []interface{}{map[string]interface{}{"name": "Widget", "quantity": float64(1), "price": "1e20000000"}}
			},
			want: "items[0].price: price exceeds 1000000000.00",
		},
		{
			name: "price above limit",
			mutate: func(a map[string]interface{}) {
				a["items"] = []interface{}{map[string]interface{}{"name": "Widget", "quantity": float64(1), "price": 1000000000.01}}
			},
			want: "items[0].price: price exceeds",
		},
		{
			name: "price with too many decimals",
			mutate: func(a map[string]interface{}) {
				a["items"] = []interface{}{map[string]interface{}{"name": "Widget", "quantity": float64(1), "price": "0.0000000000001"}}
			},
			want: "items[0].price: price has too many decimal places",
		},
		{
			name:   "malformed items",
			mutate: func(a map[string]interface{}) { a["items"] = "Widget x2" },
			want:   "items must be an array",
		},
		{
			name:   "bad date",
			mutate: func(a map[string]interface{}) { a["date"] = "01/03/2024" },
			want:   "YYYY-MM-DD",
		},
		{
			name:   "bad color",
			mutate: func(a map[string]interface{}) { a["header_color"] = "blue" },
			want:   "header_color",
		},
		{
			name:   "logo outside output directory",
			mutate: func(a map[string]interface{}) { a["logo_path"] = "/etc/passwd" },
			want:   "logo:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t)
			args := generateArgs()
			tt.mutate(args)

			result, err := server.handleGenerate(context.Background(), callRequest(args))
			if err != nil {
				t.Fatalf("handler failed: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected tool error")
			}
			if text := extractTextFromResult(result); !strings.Contains(text, tt.want) {
				t.Errorf("error should contain %q, got: %s", tt.want, text)
			}
		})
	}
}

func TestServer_HandleGenerate_WithLogo(t *testing.T) {
	server, dir := newTestServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	args := generateArgs()
	args["logo_path"] = "logo.png"
	result, _ := server.handleGenerate(context.Background(), callRequest(args))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	inspect, _ := server.handleInspect(context.Background(), callRequest(map[string]interface{}{"path": "Invoice_INV-7.pdf"}))
	if text := extractTextFromResult(inspect); !strings.Contains(text, "Images: 1") {
		t.Errorf("expected one embedded image, got: %s", text)
	}
}

func TestServer_HandleInspect(t *testing.T) {
	server, _ := newTestServer(t)
	if _, err := server.handleGenerate(context.Background(), callRequest(generateArgs())); err != nil {
		t.Fatal(err)
	}

	result, err := server.handleInspect(context.Background(), callRequest(map[string]interface{}{"path": "Invoice_INV-7.pdf"}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := extractTextFromResult(result)
	for _, want := range []string{"Pages: 1", "INVOICE", "Customer Name: Jane Doe", "$24.98"} {
		if !strings.Contains(text, want) {
			t.Errorf("inspect output should contain %q, got: %s", want, text)
		}
	}

	missing, _ := server.handleInspect(context.Background(), callRequest(map[string]interface{}{}))
	if !missing.IsError {
		t.Error("expected error for missing path")
	}

	outside, _ := server.handleInspect(context.Background(), callRequest(map[string]interface{}{"path": "../elsewhere.pdf"}))
	if !outside.IsError {
		t.Error("expected error for path outside the output directory")
	}
}

func TestServer_HandleList(t *testing.T) {
	server, _ := newTestServer(t)
	for _, number := range []string{"A-1", "A-2", "B-1"} {
		args := generateArgs()
		args["invoice_number"] = number
		if result, _ := server.handleGenerate(context.Background(), callRequest(args)); result.IsError {
			t.Fatalf("generate %s failed: %s", number, extractTextFromResult(result))
		}
	}

	result, _ := server.handleList(context.Background(), callRequest(map[string]interface{}{}))
	if text := extractTextFromResult(result); !strings.Contains(text, "Found 3 invoice(s)") {
		t.Errorf("expected 3 invoices, got: %s", text)
	}

	result, _ = server.handleList(context.Background(), callRequest(map[string]interface{}{"query": "a-"}))
	text := extractTextFromResult(result)
	if !strings.Contains(text, "Found 2 invoice(s)") || strings.Contains(text, "Invoice_B-1.pdf") {
		t.Errorf("expected only A invoices, got: %s", text)
	}
}

func TestServer_HandleServerInfo(t *testing.T) {
	server, dir := newTestServer(t)

	result, err := server.handleServerInfo(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := extractTextFromResult(result)
	for _, want := range []string{"test-server", dir, "none yet", ToolGenerate, ToolInspect, ToolList, ToolServerInfo} {
		if !strings.Contains(text, want) {
			t.Errorf("server info should contain %q, got: %s", want, text)
		}
	}
}

func TestServer_Serve_ContextCancellation(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	reader, writer := io.Pipe()
	defer writer.Close()

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, reader, &bytes.Buffer{})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

// extractTextFromResult returns the first text content of a tool result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
