package api

// ChainResponse is one chain entry in GET /api/chains.
type ChainResponse struct {
	Name   string   `json:"name"`
	Stages []string `json:"stages"`
}

// ResultResponse is one stored chain result in GET /api/results.
type ResultResponse struct {
	Chain     string         `json:"chain"`
	Device    string         `json:"device"`
	Values    map[string]any `json:"values"`
	Timestamp string         `json:"timestamp"`  // RFC3339, record time
	UpdatedAt string         `json:"updated_at"` // RFC3339, store time
}

// HealthzResponse is the payload for GET /healthz.
type HealthzResponse struct {
	Status string `json:"status"`
	Chains int    `json:"chains"`
}

type errorResponse struct {
	Error string `json:"error"`
}
