package web

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/logging"
	"github.com/merchantsons/invoicegen/internal/logo"
	"github.com/merchantsons/invoicegen/internal/session"
)

// Messages shown on the form
const (
	msgLogoProcessed = "Logo uploaded and processed successfully!"
	msgLogoRemoved   = "Logo removed."
	msgItemsCleared  = "Item list cleared."
	msgItemNameEmpty = "Enter an item name before adding it."
	msgRenderFailed  = "The invoice could not be generated. Please try again."
)

// itemRow is one line of the "Added Items" table
type itemRow struct {
	Name     string
	Quantity int
	Price    string
	Total    string
}

// pageData is the view model of templates/index.html
type pageData struct {
	Draft        session.Draft
	Items        []itemRow
	Total        string
	LogoURI      template.URL
	Flashes      []session.Flash
	ErrorMessage string
	Errors       []invoice.FieldError
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderPage(c, http.StatusOK, currentSession(c), "", nil)
}

func (s *Server) handleAddItem(c *gin.Context) {
	sess := currentSession(c)
	if !s.saveDraft(c, sess) {
		return
	}

	var form itemForm
	if err := c.ShouldBind(&form); err != nil {
		s.badForm(c, err)
		return
	}

	item, errs := form.toItem()
	switch {
	case item.Name == "":
		sess.AddFlash(session.FlashError, msgItemNameEmpty)
	case len(errs) > 0:
		for _, e := range errs {
			sess.AddFlash(session.FlashError, fmt.Sprintf("%s: %s", e.Field, e.Message))
		}
	default:
		if err := invoice.ValidateItem(item); err != nil {
			sess.AddFlash(session.FlashError, err.Error())
			break
		}
		items := sess.AddItem(item)
		logging.FromGin(c).Debug("item added", zap.String("item", item.Name), zap.Int("items", len(items)))
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("Item '%s' added!", item.Name))
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleClearItems(c *gin.Context) {
	sess := currentSession(c)
	if !s.saveDraft(c, sess) {
		return
	}
	sess.ClearItems()
	sess.AddFlash(session.FlashSuccess, msgItemsCleared)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleUploadLogo(c *gin.Context) {
	sess := currentSession(c)
	if !s.saveDraft(c, sess) {
		return
	}

	header, err := c.FormFile("logo")
	if err != nil {
		sess.AddFlash(session.FlashError, "Choose an image file to upload.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	file, err := header.Open()
	if err != nil {
		s.badForm(c, err)
		return
	}
	defer file.Close()

	png, err := logo.Process(file, s.maxLogoSize)
	if err != nil {
		logging.FromGin(c).Info("logo rejected", zap.String("filename", header.Filename), zap.Error(err))
		sess.AddFlash(session.FlashError, "Could not process logo: "+err.Error())
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	sess.SetLogo(png)
	sess.AddFlash(session.FlashSuccess, msgLogoProcessed)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleClearLogo(c *gin.Context) {
	sess := currentSession(c)
	if !s.saveDraft(c, sess) {
		return
	}
	sess.SetLogo(nil)
	sess.AddFlash(session.FlashSuccess, msgLogoRemoved)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleGenerate(c *gin.Context) {
	sess := currentSession(c)
	if !s.saveDraft(c, sess) {
		return
	}
	logger := logging.FromGin(c)

	req, fieldErrs := buildRequest(sess.Snapshot(), s.now())
	if err := invoice.Validate(req); err != nil {
		var verr *invoice.ValidationError
		if !errors.As(err, &verr) {
			logger.Error("validation failed unexpectedly", zap.Error(err))
			s.renderPage(c, http.StatusInternalServerError, sess, msgRenderFailed, nil)
			return
		}
		fieldErrs = append(fieldErrs, verr.Fields...)
	}
	if len(fieldErrs) > 0 {
		s.renderPage(c, http.StatusUnprocessableEntity, sess, invoice.MissingFieldsMessage, fieldErrs)
		return
	}

	req.Normalize()
	data, err := s.renderer.Render(req)
	if err != nil {
		logger.Error("invoice rendering failed", zap.String("invoice_number", req.InvoiceNumber), zap.Error(err))
		s.renderPage(c, http.StatusInternalServerError, sess, msgRenderFailed, nil)
		return
	}

	filename := invoice.Filename(req.InvoiceNumber)
	logger.Info("invoice generated",
		zap.String("invoice_number", req.InvoiceNumber),
		zap.Int("items", len(req.Items)),
		zap.Int("bytes", len(data)))

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// saveDraft stores the submitted invoice fields so that they survive the
// redirect back to the form. It reports false after writing an error response.
func (s *Server) saveDraft(c *gin.Context, sess *session.Session) bool {
	var form draftForm
	if err := c.ShouldBind(&form); err != nil {
		s.badForm(c, err)
		return false
	}
	sess.SetDraft(form.toDraft())
	return true
}

func (s *Server) badForm(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		logging.FromGin(c).Info("request body too large", zap.Int64("limit", maxErr.Limit))
		c.String(http.StatusRequestEntityTooLarge, "upload exceeds %d bytes", s.maxLogoSize)
		return
	}
	logging.FromGin(c).Info("malformed form submission", zap.Error(err))
	c.String(http.StatusBadRequest, "malformed form submission")
}

func (s *Server) renderPage(c *gin.Context, status int, sess *session.Session, message string, errs []invoice.FieldError) {
	state := sess.Snapshot()
	data := pageData{
		Draft:        state.Draft,
		Total:        invoice.FormatMoney(invoice.GrandTotal(state.Items)),
		Flashes:      sess.TakeFlashes(),
		ErrorMessage: message,
		Errors:       errs,
	}
	if message != "" && len(errs) == 0 {
		data.Flashes = append(data.Flashes, session.Flash{Kind: session.FlashError, Text: message})
	}
	if data.Draft.TextColor == "" {
		data.Draft.TextColor = invoice.DefaultTextColor
		data.Draft.HeaderColor = invoice.DefaultHeaderColor
		data.Draft.BackgroundColor = invoice.DefaultBackgroundColor
	}
	if data.Draft.Date == "" {
		data.Draft.Date = s.now().Format(invoice.DateLayout)
	}
	for _, item := range state.Items {
		data.Items = append(data.Items, itemRow{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    invoice.FormatMoney(item.UnitPrice),
			Total:    invoice.FormatMoney(item.LineTotal()),
		})
	}
	if len(state.Logo) > 0 {
		// The processed logo is a PNG produced by the logo package.
		data.LogoURI = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(state.Logo))
	}

	c.HTML(status, "index.html", data)
}
