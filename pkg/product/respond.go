package product

import (
	"net/http"
)

// Formatter writes HTTP responses in JSON or MessagePack.
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// RequestedFormat returns the response format asked for by req.
// JSON is the default format. MessagePack is used when format=msgpack is specified
func (f *Formatter) RequestedFormat(req *http.Request) Format {
	if req.URL.Query().Get("format") == string(MsgPack) {
		return MsgPack
	}
	return JSON
}

// WriteResponse encodes data with the requested format and status.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	format := f.RequestedFormat(req)
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	return Encode(w, format, data)
}
