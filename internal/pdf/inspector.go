package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Inspector validates PDF documents and extracts their text
type Inspector struct {
	maxFileSize int64
	maxTextSize int
}

// NewInspector creates a new inspector with the specified constraints
func NewInspector(maxFileSize int64) *Inspector {
	return &Inspector{
		maxFileSize: maxFileSize,
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// InspectFile reads a PDF from disk and inspects it
func (i *Inspector) InspectFile(filePath string) (*InspectResult, error) {
	if err := i.validateFile(filePath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	result, err := i.Inspect(data)
	if err != nil {
		return nil, err
	}
	result.Path = filePath
	return result, nil
}

// Inspect validates an in-memory PDF and extracts text, page count, image
// count and document info.
func (i *Inspector) Inspect(data []byte) (*InspectResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	if int64(len(data)) > i.maxFileSize {
		return nil, fmt.Errorf("document too large: %d bytes (max: %d bytes)", len(data), i.maxFileSize)
	}

	pages, err := i.validate(data)
	if err != nil {
		return nil, err
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	result := &InspectResult{
		Size:     int64(len(data)),
		Pages:    pages,
		PageText: i.extractPageText(r),
	}
	result.ImageCount = i.countImages(r)
	i.extractMetadata(r, result)

	return result, nil
}

// validate runs pdfcpu over the document and returns its page count
func (i *Inspector) validate(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return ctx.PageCount, nil
}

// validateFile performs basic checks before a file is read
func (i *Inspector) validateFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}
	if fileInfo.Size() > i.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), i.maxFileSize)
	}

	return nil
}

// extractPageText returns the plain text of every page, capped at maxTextSize overall
func (i *Inspector) extractPageText(r *pdf.Reader) []string {
	texts := make([]string, 0, r.NumPage())
	totalLength := 0

	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, "")
			continue
		}

		if totalLength+len(content) > i.maxTextSize {
			remaining := i.maxTextSize - totalLength
			if remaining > 0 {
				texts = append(texts, content[:remaining])
			}
			break
		}

		texts = append(texts, content)
		totalLength += len(content)
	}

	return texts
}

// countImages counts image XObjects referenced from page resources
func (i *Inspector) countImages(r *pdf.Reader) (count int) {
	defer func() {
		// ledongthuc panics on some malformed objects; treat as no images.
		if recover() != nil {
			count = 0
		}
	}()

	seen := make(map[string]bool)
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		xObjects := page.Resources().Key("XObject")
		if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
			continue
		}

		for _, key := range xObjects.Keys() {
			obj := xObjects.Key(key)
			if obj.IsNull() || obj.Key("Subtype").Name() != "Image" {
				continue
			}
			if !seen[key] {
				seen[key] = true
				count++
			}
		}
	}

	return count
}

func (i *Inspector) extractMetadata(r *pdf.Reader, result *InspectResult) {
	defer func() {
		// Metadata is optional; a malformed Info dictionary is ignored.
		_ = recover()
	}()

	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return
	}

	result.Title = strings.TrimSpace(info.Key("Title").Text())
	result.Creator = strings.TrimSpace(info.Key("Creator").Text())
	result.Producer = strings.TrimSpace(info.Key("Producer").Text())
}
