package web

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/pdf"
	"github.com/merchantsons/invoicegen/internal/render"
	"github.com/merchantsons/invoicegen/internal/session"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type failingRenderer struct{}

func (failingRenderer) Render(invoice.Request) ([]byte, error) {
	return nil, errors.New("writer exploded")
}

type testClient struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newTestClient(t *testing.T, r Renderer) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(Config{
		Renderer:    r,
		Sessions:    session.NewStore(time.Hour),
		MaxLogoSize: 64 * 1024,
		Now:         func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &testClient{t: t, srv: srv}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	w := httptest.NewRecorder()
	tc.srv.Handler().ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			tc.cookie = c
		}
	}
	return w
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// post submits the whole form as a browser would, optionally with a logo file
func (tc *testClient) post(path string, values url.Values, logo []byte) *httptest.ResponseRecorder {
	tc.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, vals := range values {
		for _, v := range vals {
			require.NoError(tc.t, mw.WriteField(key, v))
		}
	}
	if logo != nil {
		fw, err := mw.CreateFormFile("logo", "logo.png")
		require.NoError(tc.t, err)
		_, err = fw.Write(logo)
		require.NoError(tc.t, err)
	}
	require.NoError(tc.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return tc.do(req)
}

func invoiceFields() url.Values {
	return url.Values{
		"company_name":     {"Acme Corp"},
		"customer_name":    {"Jane Doe"},
		"address":          {"1 Main St\nSpringfield"},
		"invoice_number":   {"INV-001"},
		"date":             {"2024-03-01"},
		"text_color":       {"#FFFFFF"},
		"header_color":     {"#60A5FA"},
		"background_color": {"#1E3A8A"},
	}
}

func withItem(v url.Values, name, qty, price string) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = vals
	}
	out.Set("item_name", name)
	out.Set("quantity", qty)
	out.Set("price", price)
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Config{Sessions: session.NewStore(time.Hour), MaxLogoSize: 1})
	assert.Error(t, err)
	_, err = NewServer(Config{Renderer: failingRenderer{}, MaxLogoSize: 1})
	assert.Error(t, err)
	_, err = NewServer(Config{Renderer: failingRenderer{}, Sessions: session.NewStore(time.Hour)})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})
	w := tc.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestIndex_NewSession(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})
	w := tc.get("/")

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, tc.cookie)
	assert.True(t, tc.cookie.HttpOnly)
	body := w.Body.String()
	assert.Contains(t, body, "CUSTOMIZABLE INVOICE GENERATOR")
	assert.Contains(t, body, `value="2024-03-15"`)
	assert.Contains(t, body, `value="#1E3A8A"`)
	assert.NotContains(t, body, "Added Items")
}

func TestAddItem_AccumulatesInOrder(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})

	w := tc.post("/items", withItem(invoiceFields(), "Widget", "2", "9.99"), nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	tc.post("/items", withItem(invoiceFields(), "Gadget", "1", "5"), nil)

	body := tc.get("/").Body.String()
	assert.Contains(t, body, "added!")
	assert.Contains(t, body, "$19.98")
	assert.Contains(t, body, "$5.00")
	assert.Contains(t, body, "Total: $24.98")
	assert.Less(t, strings.Index(body, "Widget"), strings.Index(body, "Gadget"))
	// Draft fields survive the redirect.
	assert.Contains(t, body, `value="Acme Corp"`)

	// Flashes are shown once.
	assert.NotContains(t, tc.get("/").Body.String(), "added!")
}

func TestAddItem_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		qty     string
		item    string
		price   string
		message string
	}{
		{name: "empty name", item: "  ", qty: "1", price: "1", message: msgItemNameEmpty},
		{name: "non numeric quantity", item: "Widget", qty: "two", price: "1", message: "quantity: Must be a whole number"},
		{name: "zero quantity", item: "Widget", qty: "0", price: "1", message: "greater than or equal to 1"},
		{name: "negative price", item: "Widget", qty: "1", price: "-1", message: "greater than or equal to 0"},
		{name: "non numeric price", item: "Widget", qty: "1", price: "cheap", message: "price: Must be a number"},
		{name: "price with huge exponent", item: "Widget", qty: "1", price: "1e20000000", message: "price: Must not exceed 1000000000.00"},
		{name: "price above limit", item: "Widget", qty: "1", price: "1000000000.01", message: "price: Must not exceed 1000000000.00"},
		{name: "price with too many decimals", item: "Widget", qty: "1", price: "0.0000000000001", message: "price: Must be an amount in dollars and cents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestClient(t, failingRenderer{})
			tc.post("/items", withItem(invoiceFields(), tt.item, tt.qty, tt.price), nil)

			body := tc.get("/").Body.String()
			assert.Contains(t, body, tt.message)
			assert.NotContains(t, body, "Added Items")
		})
	}
}

func TestClearItems(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})
	tc.post("/items", withItem(invoiceFields(), "Widget", "1", "1"), nil)
	tc.post("/items/clear", invoiceFields(), nil)

	body := tc.get("/").Body.String()
	assert.Contains(t, body, msgItemsCleared)
	assert.NotContains(t, body, "Added Items")
}

func TestGenerate_MissingFields(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})

	w := tc.post("/invoice", invoiceFields(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill in all fields and add at least one item.")
	assert.Contains(t, w.Body.String(), "items:")

	fields := invoiceFields()
	fields.Set("company_name", "   ")
	fields.Set("text_color", "not-a-color")
	tc.post("/items", withItem(fields, "Widget", "1", "1"), nil)
	w = tc.post("/invoice", fields, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "company_name:")
	assert.Contains(t, w.Body.String(), "text_color:")
}

func TestGenerate_StreamsPDF(t *testing.T) {
	tc := newTestClient(t, render.NewRenderer(render.Config{}))
	tc.post("/items", withItem(invoiceFields(), "Widget", "2", "9.99"), nil)
	tc.post("/items", withItem(invoiceFields(), "Gadget", "1", "5.00"), nil)

	w := tc.post("/invoice", invoiceFields(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Invoice_INV-001.pdf"`, w.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	result, err := pdf.NewInspector(10 << 20).Inspect(w.Body.Bytes())
	require.NoError(t, err)
	text := result.Text()
	assert.Contains(t, text, "Acme Corp")
	assert.Contains(t, text, "Date: 2024-03-01")
	assert.Contains(t, text, "$24.98")
	assert.Contains(t, text, "Twenty-four dollars, ninety-eight cents")
}

func TestGenerate_RendererFailure(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})
	tc.post("/items", withItem(invoiceFields(), "Widget", "1", "1"), nil)

	w := tc.post("/invoice", invoiceFields(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), msgRenderFailed)
}

func TestLogoUpload(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})

	w := tc.post("/logo", invoiceFields(), pngBytes(t))
	require.Equal(t, http.StatusSeeOther, w.Code)

	body := tc.get("/").Body.String()
	assert.Contains(t, body, msgLogoProcessed)
	assert.Contains(t, body, "data:image/png;base64,")

	tc.post("/logo/clear", invoiceFields(), nil)
	body = tc.get("/").Body.String()
	assert.Contains(t, body, msgLogoRemoved)
	assert.NotContains(t, body, "data:image/png;base64,")
}

func TestLogoUpload_Rejected(t *testing.T) {
	tc := newTestClient(t, failingRenderer{})

	tc.post("/logo", invoiceFields(), []byte("definitely not an image"))
	body := tc.get("/").Body.String()
	assert.Contains(t, body, "Could not process logo")
	assert.NotContains(t, body, "data:image/png;base64,")

	tc.post("/logo", invoiceFields(), nil)
	assert.Contains(t, tc.get("/").Body.String(), "Choose an image file to upload.")
}

func TestSessions_AreIsolated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(Config{
		Renderer:    failingRenderer{},
		Sessions:    session.NewStore(time.Hour),
		MaxLogoSize: 1024,
	})
	require.NoError(t, err)

	alice := &testClient{t: t, srv: srv}
	bob := &testClient{t: t, srv: srv}
	alice.post("/items", withItem(invoiceFields(), "Widget", "1", "1"), nil)
	bob.get("/")

	assert.Contains(t, alice.get("/").Body.String(), "Added Items")
	assert.NotContains(t, bob.get("/").Body.String(), "Added Items")
	assert.NotEqual(t, alice.cookie.Value, bob.cookie.Value)
}

func TestBuildRequest(t *testing.T) {
	state := session.State{
		Draft: session.Draft{
			CompanyName:     "Acme",
			Date:            "",
			TextColor:       "#000",
			HeaderColor:     "",
			BackgroundColor: "#ffffff",
		},
	}

	req, errs := buildRequest(state, fixedNow)
	assert.Empty(t, errs)
	assert.Equal(t, fixedNow, req.Date)
	assert.Equal(t, invoice.RGB{}, req.TextColor)
	assert.Equal(t, invoice.MustParseHex(invoice.DefaultHeaderColor), req.HeaderColor)
	assert.Equal(t, invoice.White, req.BackgroundColor)

	state.Draft.Date = "03/01/2024"
	_, errs = buildRequest(state, fixedNow)
	require.Len(t, errs, 1)
	assert.Equal(t, "date", errs[0].Field)
}
