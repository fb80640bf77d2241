package observability

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DebugServer is the optional operational HTTP surface of a router:
// health, the live channel registry and Prometheus metrics. It is not
// part of the message protocol and is off unless configured.
type DebugServer struct {
	id       string
	addr     string
	snapshot func() [][2]string
	started  time.Time

	listener net.Listener
	srv      *http.Server
}

func NewDebugServer(id, addr string, corsOrigins []string, snapshot func() [][2]string) *DebugServer {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	d := &DebugServer{
		id:       id,
		addr:     addr,
		snapshot: snapshot,
		started:  time.Now(),
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(d.started).String(),
			"service": d.id,
		})
	})
	r.GET("/channels", func(c *gin.Context) {
		pairs := d.snapshot()
		out := make([][]string, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, []string{p[0], p[1]})
		}
		c.JSON(http.StatusOK, out)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	d.srv = &http.Server{Handler: r}
	return d
}

// Start binds the listener and serves in the background. The resolved
// address is available from Addr afterwards.
func (d *DebugServer) Start() error {
	listener, err := net.Listen("tcp", d.addr)
	if err != nil {
		return err
	}
	d.listener = listener
	go func() {
		if err := d.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("service", d.id).Msg("debug server stopped")
		}
	}()
	return nil
}

func (d *DebugServer) Addr() string {
	if d.listener == nil {
		return d.addr
	}
	return d.listener.Addr().String()
}

func (d *DebugServer) Close() error {
	if d.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.srv.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, raw := range origins {
		origin := strings.TrimSpace(raw)
		if origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost"}
	}
	return out
}
