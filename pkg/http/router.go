package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type Router = router.Router
type Group = router.Group

const (
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}

// CreateDefaultRouter returns a router answering JSON 404/405 bodies.
func CreateDefaultRouter() *Router {
	r := router.New()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	jsonError(ctx, fasthttp.StatusNotFound)
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	jsonError(ctx, fasthttp.StatusMethodNotAllowed)
}

func jsonError(ctx *RequestCtx, status int) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + StatusText(status) + `"}`)
}
