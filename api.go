package govdigest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/govdigest/sources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// APIServer represents the HTTP API server.
type APIServer struct {
	service  *Service
	sources  *sources.SourceAPIServer
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewAPIServer creates a new API server. sourceAPI and gatherer may be nil,
// in which case the source and metrics routes are not mounted.
func NewAPIServer(
	service *Service,
	sourceAPI *sources.SourceAPIServer,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *APIServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIServer{
		service:  service,
		sources:  sourceAPI,
		gatherer: gatherer,
		logger:   logger,
	}
}

// SetupRouter builds the gin engine with every route and middleware.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger), corsMiddleware())

	router.GET("/", s.HandleRoot)
	router.GET("/query_news_list", s.HandleQueryNewsList)

	if s.sources != nil {
		s.sources.RegisterRoutes(router)
	}
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// HandleRoot handles GET /.
func (s *APIServer) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleQueryNewsList handles GET /query_news_list. It runs every source
// and always answers 200; failed sources simply contribute nothing.
func (s *APIServer) HandleQueryNewsList(c *gin.Context) {
	digests := s.service.RunAll(c.Request.Context())
	c.JSON(http.StatusOK, digests)
}

// corsMiddleware allows any origin, method and header, and answers
// preflight requests itself.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}

		if len(c.Errors) > 0 {
			logger.Error("HTTP request with errors", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
