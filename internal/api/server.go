package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pdfbot/internal/db/postgres"
	"pdfbot/internal/domain/kb"
	applog "pdfbot/internal/platform/log"
)

// ServerConfig 服务配置
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	JWTSecret    string // 为空时不启用鉴权（单机可信部署）
	JWTIssuer    string
}

// DefaultServerConfig 默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // 索引构建可能较慢，写超时放宽
	}
}

// Server HTTP 服务器
type Server struct {
	config    *ServerConfig
	registry  *kb.Registry
	pipeline  *kb.Pipeline
	kbStore   *postgres.KBStore // 可选
	maxFileMB int
	httpSrv   *http.Server
}

// NewServer 创建服务器
func NewServer(config *ServerConfig, registry *kb.Registry, pipeline *kb.Pipeline, maxFileMB int) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		config:    config,
		registry:  registry,
		pipeline:  pipeline,
		maxFileMB: maxFileMB,
	}
}

// SetKBStore 设置元数据存储（可选）
func (s *Server) SetKBStore(store *postgres.KBStore) {
	s.kbStore = store
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	applog.Infof("🚀 Knowledge bot API server starting on %s", addr)
	return s.httpSrv.ListenAndServe()
}

// Stop 优雅停机
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Handler 返回 HTTP Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	botHandler := NewBotHandler(s.registry, s.pipeline, s.maxFileMB)
	if s.kbStore != nil {
		botHandler.SetStore(s.kbStore)
	}

	if strings.TrimSpace(s.config.JWTSecret) != "" {
		jwtCfg := &JWTConfig{
			Secret: s.config.JWTSecret,
			Issuer: s.config.JWTIssuer,
		}
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(jwtCfg))
			botHandler.RegisterRoutes(r)
		})
		applog.Info("🔐 JWT auth enabled for /bot routes")
	} else {
		botHandler.RegisterRoutes(r)
	}

	return r
}

// corsMiddleware CORS 中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
