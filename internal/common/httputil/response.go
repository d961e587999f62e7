package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// ErrorEnvelope is the wire shape for every failed request.
// Successful audit responses are the report object itself, so only the
// error path shares a common envelope.
type ErrorEnvelope struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// JSONBody marshals v and writes it with the given status code.
// Marshal failures degrade to a plain 500 so a response is always sent.
func JSONBody(ctx *fasthttp.RequestCtx, v interface{}, statusCode int) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"ok":false,"errors":["internal encoding error"]}`)
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// JSONErrors sends the {ok:false, errors:[...]} envelope with the given status.
func JSONErrors(ctx *fasthttp.RequestCtx, statusCode int, errs ...string) {
	JSONBody(ctx, ErrorEnvelope{OK: false, Errors: errs}, statusCode)
}

// JSONOK sends v with HTTP 200.
func JSONOK(ctx *fasthttp.RequestCtx, v interface{}) {
	JSONBody(ctx, v, fasthttp.StatusOK)
}
