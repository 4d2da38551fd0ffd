package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/internal/rest"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
)

type Server struct {
	conf    *config.ServerConfig
	logger  *zap.Logger
	node    rest.Node
	gateway *rest.Gateway
	engine  *gin.Engine
	hs      *http.Server
}

func NewServer(conf *config.ServerConfig, logger *zap.Logger, node rest.Node) *Server {
	logger = pkg.Named(logger, "server")
	s := &Server{
		conf:    conf,
		logger:  logger,
		node:    node,
		gateway: rest.NewGateway(node, logger),
	}

	s.initGin()
	return s
}

func (s *Server) initGin() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(pkg.LogMiddleware(s.logger), pkg.CORSMiddleware(), gin.Recovery())

	engine.Any("/rest/*path", s.restHandle())
	engine.GET("/health", s.healthHandle())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine = engine
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run() {
	addr := fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port)
	hs := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.conf.ReadTimeout,
		WriteTimeout: s.conf.WriteTimeout,
		IdleTimeout:  s.conf.IdleTimeout,
	}
	s.hs = hs

	go func() {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("listen", zap.Error(err))
		}
	}()
	s.logger.Info("listen", zap.String("addr", addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}
