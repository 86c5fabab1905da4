package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Search lists generated invoices in a directory
type Search struct {
	maxFileSize int64
}

// NewSearch creates a new invoice search handler with the specified constraints
func NewSearch(maxFileSize int64) *Search {
	return &Search{maxFileSize: maxFileSize}
}

// ListInvoices returns the PDF files directly inside directory whose names
// contain query (case-insensitive), newest first.
func (s *Search) ListInvoices(directory, query string) (*InvoiceListResult, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	entries, err := os.ReadDir(directory)
	if os.IsNotExist(err) {
		return &InvoiceListResult{Files: []FileInfo{}, Directory: directory, SearchQuery: query}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	files := []FileInfo{}
	modTimes := map[string]int64{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(entry.Name()), needle) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.Size() == 0 || info.Size() > s.maxFileSize {
			continue
		}

		path := filepath.Join(directory, entry.Name())
		modTimes[path] = info.ModTime().UnixNano()
		files = append(files, FileInfo{
			Path:         path,
			Name:         entry.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if modTimes[files[i].Path] != modTimes[files[j].Path] {
			return modTimes[files[i].Path] > modTimes[files[j].Path]
		}
		return files[i].Name < files[j].Name
	})

	return &InvoiceListResult{
		Files:       files,
		TotalCount:  len(files),
		Directory:   directory,
		SearchQuery: query,
	}, nil
}
