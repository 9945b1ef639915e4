package httpclient

import (
	"context"
	"net/http"
)

// BaseResponse is returned for every completed round trip, whatever the status.
// On transport errors it is empty, never nil.
type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// HTTPClient decodes 2xx bodies into result. Non-2xx statuses are not errors;
// callers inspect StatusCode.
type HTTPClient interface {
	Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error)
	Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error)
}
