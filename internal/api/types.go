package api

import "encoding/json"

// AddCacheRequest is the body of POST /cache/add.
type AddCacheRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	// Item turns the write into a single hash field write.
	Item  string          `json:"item,omitempty"`
	// Time is the ttl in seconds; absent or <= 0 means no expiration.
	Time  *int64          `json:"time,omitempty"`
	// Shape forces scalar, map, list or set instead of inferring it from Value.
	Shape string          `json:"shape,omitempty"`
}

// ExpireRequest is the body of POST /cache/expire.
type ExpireRequest struct {
	Key  string `json:"key"`
	Time int64  `json:"time"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
