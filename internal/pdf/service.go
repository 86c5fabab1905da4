package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/merchantsons/invoicegen/internal/pdf/security"
)

// File permissions for stored invoices
const (
	fileMode = 0o644
	dirMode  = 0o750
)

// Service handles invoice file operations inside the output directory
type Service struct {
	inspector     *Inspector
	search        *Search
	pathValidator *security.PathValidator
}

// NewService creates a new PDF service confined to outputDirectory
func NewService(maxFileSize int64, outputDirectory string) (*Service, error) {
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}

	pathValidator, err := security.NewPathValidator(outputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	return &Service{
		inspector:     NewInspector(maxFileSize),
		search:        NewSearch(maxFileSize),
		pathValidator: pathValidator,
	}, nil
}

// InspectFile inspects a stored invoice
func (s *Service) InspectFile(req InvoiceInspectRequest) (*InspectResult, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.inspector.InspectFile(path)
}

// ListInvoices lists the invoices stored in the output directory
func (s *Service) ListInvoices(req InvoiceListRequest) (*InvoiceListResult, error) {
	return s.search.ListInvoices(s.pathValidator.GetConfiguredDirectory(), req.Query)
}

// SaveInvoice writes rendered bytes into the output directory. The file is
// written under a temporary name and renamed so readers never see a partial PDF.
func (s *Service) SaveInvoice(req InvoiceSaveRequest) (*InvoiceSaveResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("invoice data cannot be empty")
	}
	if filepath.Base(req.Filename) != req.Filename {
		return nil, fmt.Errorf("filename must not contain directories: %s", req.Filename)
	}

	path, err := s.pathValidator.Resolve(req.Filename)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".invoice-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("cannot create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(req.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("cannot write invoice: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("cannot write invoice: %w", err)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return nil, fmt.Errorf("cannot set invoice permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("cannot store invoice: %w", err)
	}

	return &InvoiceSaveResult{Path: path, Size: int64(len(req.Data))}, nil
}

// ReadFile reads a file inside the output directory, e.g. a logo referenced
// by a tool call.
func (s *Service) ReadFile(path string, maxBytes int64) ([]byte, error) {
	resolved, err := s.pathValidator.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", resolved)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxBytes)
	}

	return os.ReadFile(resolved)
}

// OutputDirectory returns the directory invoices are written to
func (s *Service) OutputDirectory() string {
	return s.pathValidator.GetConfiguredDirectory()
}
