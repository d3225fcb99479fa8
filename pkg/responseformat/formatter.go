// Package responseformat writes API responses as JSON or MessagePack.
package responseformat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Negotiate picks the response encoding of a request. The format query
// parameter wins over the Accept header; JSON is the default.
func (f *Formatter) Negotiate(req *http.Request) (string, error) {
	switch format := req.URL.Query().Get("format"); format {
	case "msgpack":
		return ContentTypeMsgPack, nil
	case "json":
		return ContentTypeJSON, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported format %q, use 'json' or 'msgpack'", format)
	}

	if strings.Contains(req.Header.Get("Accept"), ContentTypeMsgPack) {
		return ContentTypeMsgPack, nil
	}
	return ContentTypeJSON, nil
}

// WriteResponse writes data in the given content type with the status code
func (f *Formatter) WriteResponse(w http.ResponseWriter, contentType string, statusCode int, data any) error {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)

	if contentType == ContentTypeMsgPack {
		return f.writeMsgPack(w, data)
	}
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
