package domain

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Response is the result of fetching or rendering one Request.
type Response struct {
	// Request is the originating request.
	Request *Request `json:"-"`
	// URL is the final URL after any redirects.
	URL string `json:"url"`
	// StatusCode is the HTTP status of the final response.
	StatusCode int `json:"status_code"`
	// Body holds the raw response bytes.
	Body []byte `json:"-"`
	// Headers holds the response headers.
	Headers http.Header `json:"-"`
	// Elapsed is the wall time the fetch took.
	Elapsed time.Duration `json:"elapsed"`
}

// Text returns the body decoded as UTF-8, with invalid sequences replaced
// by the Unicode replacement character.
func (r *Response) Text() string {
	if utf8.Valid(r.Body) {
		return string(r.Body)
	}
	return strings.ToValidUTF8(string(r.Body), string(utf8.RuneError))
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
