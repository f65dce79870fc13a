package model

// PageIdentity is the identity signature of the page being inspected,
// derived once per visit and immutable for its duration. Any field may be
// empty; an all-empty identity is a valid (if weak) outcome.
type PageIdentity struct {
	Route     string `json:"route,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// Empty reports whether no identity signal was recovered at all.
func (p PageIdentity) Empty() bool {
	return p.Route == "" && p.ProductID == "" && p.CompanyID == ""
}
