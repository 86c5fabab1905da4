package pdf

// FileInfo represents information about a generated invoice file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// InvoiceInspectRequest represents a request to inspect a generated invoice
type InvoiceInspectRequest struct {
	Path string `json:"path"`
}

// InvoiceListRequest represents a request to list generated invoices
type InvoiceListRequest struct {
	Query string `json:"query"`
}

// InvoiceSaveRequest represents a request to store rendered invoice bytes
type InvoiceSaveRequest struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
}

// Response Types

// InspectResult describes a rendered PDF document
type InspectResult struct {
	Path       string   `json:"path,omitempty"`
	Size       int64    `json:"size"`
	Pages      int      `json:"pages"`
	PageText   []string `json:"page_text"`
	ImageCount int      `json:"image_count"`
	Title      string   `json:"title,omitempty"`
	Creator    string   `json:"creator,omitempty"`
	Producer   string   `json:"producer,omitempty"`
}

// Text joins the text of all pages
func (r *InspectResult) Text() string {
	text := ""
	for i, page := range r.PageText {
		if i > 0 {
			text += "\n\n--- Page Break ---\n\n"
		}
		text += page
	}
	return text
}

// InvoiceListResult represents the invoices found in the output directory
type InvoiceListResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// InvoiceSaveResult represents a stored invoice
type InvoiceSaveResult struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}
