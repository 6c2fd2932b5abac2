package dto

import domainchat "storefront/internal/domain/chat"

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewPagination(page domainchat.Page, total int64) Pagination {
	pages := 0
	if page.Size > 0 {
		pages = int((total + int64(page.Size) - 1) / int64(page.Size))
	}
	return Pagination{Total: total, Page: page.Number, PageSize: page.Size, TotalPages: pages}
}
