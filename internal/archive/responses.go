package archive

// PaginationMeta describes one page of a listing.
type PaginationMeta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPaginationMeta computes page counts for a 1-based page of limit items.
func NewPaginationMeta(page, limit, totalCount int) PaginationMeta {
	totalPages := 0
	if totalCount > 0 && limit > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return PaginationMeta{
		Page:        page,
		Limit:       limit,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// PaginatedResponse wraps one page of items.
type PaginatedResponse[T any] struct {
	Success    bool           `json:"success"`
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ErrorDetail points at the field that caused an error.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Success   bool          `json:"success"`
	Error     string        `json:"error"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// SuccessResponse acknowledges simple operations.
type SuccessResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
