package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"krishimitra/api/internal/response"
	"krishimitra/api/internal/security"
)

const maxBodyBytes = 1 << 20

// Sanitize cleans string values in the JSON body, query string and path
// parameters before any handler sees them. The body is cleaned whenever it
// decodes as JSON, whatever Content-Type claims, since handlers bind JSON
// regardless of the header. Bodies that are not valid JSON pass through
// unchanged for the handler to reject.
func Sanitize() gin.HandlerFunc {
	return func(c *gin.Context) {
		for i := range c.Params {
			c.Params[i].Value = security.SanitizeString(c.Params[i].Value)
		}

		if c.Request.URL.RawQuery != "" {
			query := c.Request.URL.Query()
			for key, values := range query {
				for i, v := range values {
					values[i] = security.SanitizeString(v)
				}
				query[key] = values
			}
			c.Request.URL.RawQuery = query.Encode()
		}

		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
			if err != nil {
				response.Fail(c, http.StatusBadRequest, response.MsgInvalidBody)
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(sanitizeJSON(body)))
		}

		c.Next()
	}
}

func sanitizeJSON(body []byte) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return body
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return body
	}
	if _, err := dec.Token(); err != io.EOF {
		return body
	}

	clean, err := json.Marshal(security.SanitizeValue(payload))
	if err != nil {
		return body
	}
	return clean
}
