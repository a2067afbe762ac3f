package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "CollabProject/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
}

// GET registers a GET route, optionally behind the credential middleware.
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		opts := midsec.DefaultOptions()
		opts.Required = true
		r.GET(path, midsec.Middleware(opts), handler)
	} else {
		r.GET(path, handler)
	}
}

// POST registers a POST route, optionally behind the credential middleware.
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		opts := midsec.DefaultOptions()
		opts.Required = true
		r.POST(path, midsec.Middleware(opts), handler)
	} else {
		r.POST(path, handler)
	}
}
