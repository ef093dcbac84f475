package models

// ListOptions controls dashboard listing: pagination, search, filter, sort
type ListOptions struct {
	Page     int
	PageSize int
	Search   string        // matches title or client name, case-insensitive
	Status   DossierStatus // empty means all statuses
	SortBy   string        // createdAt|updatedAt|title|clientName|status
	SortDir  string        // asc|desc
}

// Normalize clamps pagination and fills sort defaults
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 20
	}
	if o.PageSize > 100 {
		o.PageSize = 100
	}
	switch o.SortBy {
	case "createdAt", "updatedAt", "title", "clientName", "status":
	default:
		o.SortBy = "updatedAt"
	}
	if o.SortDir != "asc" {
		o.SortDir = "desc"
	}
}
