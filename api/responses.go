package api

// CheckResponse is the response for an effective permission lookup.
type CheckResponse struct {
	Level   string `json:"level" description:"Effective permission level"`
	Allowed bool   `json:"allowed" description:"Whether the level meets min_level (true when no min_level given)"`
}

// BranchCheckResponse is the response for a branch push check.
type BranchCheckResponse struct {
	Decision       string `json:"decision" description:"allow, allow_force, or reject"`
	Allowed        bool   `json:"allowed" description:"Whether the push may proceed"`
	Reason         string `json:"reason,omitempty" description:"Cause of a rejection"`
	MatchedPattern string `json:"matched_pattern,omitempty" description:"Rule pattern that decided"`
}

// IPCheckResponse is the response for an IP allowlist check.
type IPCheckResponse struct {
	Allowed bool `json:"allowed" description:"Whether the address passes the allowlist"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
