package security

import (
	"net/http"

	"MChat/tools/security"

	"github.com/gin-gonic/gin"
)

// Context key the handlers read the bound identity from.
const CtxIdentityKey = "identity"

type Options struct {
	JWT security.Options
	// Soft admits requests without a valid token, leaving no identity in
	// the context. Hard mode aborts with 401.
	Soft bool
}

// Middleware resolves the token cookie into an identity. The cookie is the
// same credential the WebSocket handshake carries.
func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(security.TokenCookie)
		if err != nil || token == "" {
			if !opts.Soft {
				c.AbortWithStatusJSON(http.StatusUnauthorized, "no valid token")
				return
			}
			c.Next()
			return
		}

		id, verr := security.Verify(opts.JWT, token)
		if verr != nil {
			if !opts.Soft {
				c.AbortWithStatusJSON(http.StatusUnauthorized, "no valid token")
				return
			}
			c.Next()
			return
		}

		c.Set(CtxIdentityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the verified identity or nil.
func IdentityFrom(c *gin.Context) *security.Identity {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*security.Identity)
	return id
}
