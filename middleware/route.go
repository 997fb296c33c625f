package middleware

import (
	midsec "MChat/middleware/security"
	"MChat/tools/security"

	"github.com/gin-gonic/gin"
)

// RouteOpt marks how a route wants the token cookie treated. IsAuth routes
// reject anonymous callers; SoftAuth routes resolve the identity when
// present but admit everyone.
type RouteOpt struct {
	IsAuth   bool
	SoftAuth bool
	JWT      security.Options
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.POST, path, handler, opt)
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	register(r.GET, path, handler, opt)
}

func register(method func(string, ...gin.HandlerFunc) gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	switch {
	case opt.IsAuth:
		method(path, midsec.Middleware(midsec.Options{JWT: opt.JWT}), handler)
	case opt.SoftAuth:
		method(path, midsec.Middleware(midsec.Options{JWT: opt.JWT, Soft: true}), handler)
	default:
		method(path, handler)
	}
}
