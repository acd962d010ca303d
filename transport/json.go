package transport

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-reveal/core"
)

// NewJSONRequest encodes body as JSON and sets the content type. A nil body
// produces a request without payload.
func NewJSONRequest(method string, url string, body any, headers map[string]string) (core.TransportRequest, error) {
	req := core.TransportRequest{
		Method:  method,
		URL:     url,
		Headers: map[string]string{HeaderAccept: ContentTypeJSON},
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.TransportRequest{}, failure(failureRequest, err, "transport: encode json body", nil)
		}
		req.Body = encoded
		req.Headers[HeaderContentType] = ContentTypeJSON
	}
	for key, value := range headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		req.Headers[key] = value
	}
	return req, nil
}

// DecodeJSON decodes a response body into target.
func DecodeJSON(res core.TransportResponse, target any) error {
	if err := json.Unmarshal(res.Body, target); err != nil {
		return failure(failureResponse, err, "transport: decode json response", map[string]any{"status_code": res.StatusCode})
	}
	return nil
}
