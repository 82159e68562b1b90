package xhttp

import (
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

type Server = fasthttp.Server

type ServerOption struct {
	Name               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int
	ReadBufferSize     int
	Concurrency        int
	MaxConnsPerIP      int
}

var DefaultServerOption = ServerOption{
	Name:               "drgame-ledger",
	ReadTimeout:        2500 * time.Millisecond,
	WriteTimeout:       2500 * time.Millisecond,
	IdleTimeout:        10 * time.Second,
	MaxRequestBodySize: 1 * 1024 * 1024,
	ReadBufferSize:     4 * 1024,
	Concurrency:        10_000,
	MaxConnsPerIP:      1_000,
}

type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Router: CreateDefaultRouter(),
		Server: &fasthttp.Server{
			Name:                  options.Name,
			ReadTimeout:           options.ReadTimeout,
			WriteTimeout:          options.WriteTimeout,
			IdleTimeout:           options.IdleTimeout,
			MaxRequestBodySize:    options.MaxRequestBodySize,
			ReadBufferSize:        options.ReadBufferSize,
			Concurrency:           options.Concurrency,
			MaxConnsPerIP:         options.MaxConnsPerIP,
			NoDefaultServerHeader: true,
			CloseOnShutdown:       true,
			Logger:                logger.GetLogger(),
		},
	}
}

func CreateServer() *Engine {
	return NewServer(DefaultServerOption)
}

// Use appends middleware; the first registered runs outermost.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}
	e.Server.Handler = e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for _, m := range middle {
		e.Server.Handler = m(e.Server.Handler)
	}
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// CloseOnSignal shuts the server down on SIGINT/SIGTERM and then calls onClose.
func (e *Engine) CloseOnSignal(onClose func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		e.Shutdown()
		if onClose != nil {
			onClose()
		}
	}()
}

func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
