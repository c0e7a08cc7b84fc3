package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsession/session"
)

const ginPrincipalKey = "authsession.principal"

// GinGuard is Guard for gin routers. The principal is available through
// GinPrincipal and through PrincipalFromContext on c.Request.Context().
func GinGuard(verifier PrincipalVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		p, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(ginPrincipalKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(annotate(c.Request), p))
		c.Next()
	}
}

func GinPrincipal(c *gin.Context) (session.Principal, bool) {
	v, ok := c.Get(ginPrincipalKey)
	if !ok {
		return session.Principal{}, false
	}
	p, ok := v.(session.Principal)
	return p, ok && !p.IsZero()
}

// AbortWithError writes the mapped status and error code for err.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": ErrorCode(err)})
}
