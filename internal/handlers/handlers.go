package handlers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nimasrn/drgame-ledger/internal/model"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
)

const (
	headerActorRole = "X-Actor-Role"
	headerActorID   = "X-Actor-Id"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInvariantViolation),
		errors.Is(err, model.ErrPricing):
		return 400
	case errors.Is(err, model.ErrNotFound):
		return 404
	case errors.Is(err, model.ErrStateConflict):
		return 409
	case errors.Is(err, model.ErrInsufficientBalance):
		return 422
	case errors.Is(err, model.ErrGateway):
		return 502
	}
	return 500
}

// bind decodes the request body into dst and runs struct validation on it.
func bind(ctx *xhttp.RequestCtx, dst any) error {
	if err := readJSON(ctx, dst); err != nil {
		return model.ValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.ValidationError(verrs[0].Field(), "failed on '"+verrs[0].Tag()+"'")
		}
		return model.ValidationError("body", err.Error())
	}
	return nil
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		body = []byte("{}")
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: model.KindName(err)}
	var me *model.Error
	if errors.As(err, &me) {
		resp.Field = me.Field
	}
	if status == 500 {
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		resp.Error = xhttp.StatusText(status)
	}
	writeJSON(ctx, status, resp)
}

// actorFrom reads the acting principal set by the authenticating proxy.
func actorFrom(ctx *xhttp.RequestCtx) (model.Actor, error) {
	role := model.Role(ctx.Request.Header.Peek(headerActorRole))
	switch role {
	case model.RoleCustomer, model.RoleEmployee, model.RoleRepairman, model.RoleMainManager:
	case "":
		return model.Actor{}, model.ValidationError("actor", "missing "+headerActorRole+" header")
	default:
		return model.Actor{}, model.ValidationError("actor", "unknown role "+string(role))
	}
	id, err := strconv.ParseInt(string(ctx.Request.Header.Peek(headerActorID)), 10, 64)
	if err != nil || id <= 0 {
		return model.Actor{}, model.ValidationError("actor", "invalid "+headerActorID+" header")
	}
	return model.Actor{Role: role, ID: id}, nil
}

func pathID(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt64(ctx *xhttp.RequestCtx, key string) *int64 {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func queryInt(ctx *xhttp.RequestCtx, key string) int {
	if n := queryInt64(ctx, key); n != nil {
		return int(*n)
	}
	return 0
}
