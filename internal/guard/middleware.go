package guard

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	identityContextKey = "guard_identity"
	clientIPContextKey = "guard_client_ip"
)

// Middleware adapts the chain to gin: it builds the admission request from
// the HTTP request, aborts with the denial JSON on failure, and otherwise
// stores the resolved identity and client IP in the context.
func (c *Chain) Middleware() gin.HandlerFunc {
	return func(gc *gin.Context) {
		req := FromHTTP(gc.Request)
		if d := c.Evaluate(gc.Request.Context(), req); d != nil {
			if d.Challenge {
				gc.Header("WWW-Authenticate", `Basic realm="chatgate"`)
			}
			gc.AbortWithStatusJSON(d.Status, gin.H{"error": d.Reason, "message": d.Message})
			return
		}
		gc.Set(identityContextKey, req.Identity)
		gc.Set(clientIPContextKey, req.ClientIP)
		gc.Next()
	}
}

// FromHTTP extracts the admission view of a request.
func FromHTTP(r *http.Request) *Request {
	req := &Request{
		Endpoint: r.Method + " " + r.URL.Path,
		ClientIP: ClientIP(r),
	}
	if username, password, ok := r.BasicAuth(); ok {
		req.Username = username
		req.Password = password
		req.HasCreds = true
	}
	return req
}

// ClientIP resolves the caller address: first X-Forwarded-For hop, then
// X-Real-IP, then the raw peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IdentityFromContext retrieves the identity stored by the middleware.
func IdentityFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(identityContextKey)
	if !ok {
		return "", false
	}
	identity, ok := val.(string)
	return identity, ok && identity != ""
}

// ClientIPFromContext retrieves the client IP stored by the middleware.
func ClientIPFromContext(c *gin.Context) string {
	val, ok := c.Get(clientIPContextKey)
	if !ok {
		return ClientIP(c.Request)
	}
	ip, _ := val.(string)
	return ip
}
