package search

// Record is the data indexed for a submission. FounderID is filterable so
// founder-scoped queries never leak other founders' hits.
type Record struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName"`
	OneLiner    string `json:"oneLiner"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	FounderID   string `json:"founderId"`
}

// Query describes a submission search. Empty filters match everything.
type Query struct {
	Text      string
	Status    string
	Industry  string
	FounderID string
	Limit     int
}
