package security

import (
	"net/http"

	"github.com/noah-isme/toko-promo/internal/common"
)

// BodyLimit caps request payloads. Declared lengths over the limit are
// rejected up front; streamed bodies are cut off by http.MaxBytesReader and
// surface as *http.MaxBytesError to the decoder.
type BodyLimit struct {
	Max int64
}

// Middleware applies the limit to every request with a body.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, common.CodePayloadTooLarge, "request body too large", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
