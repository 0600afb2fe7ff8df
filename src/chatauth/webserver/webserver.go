package webserver

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Deps struct {
	Authenticator Authenticator
	Limiter       Limiter
	CORSOrigins   []string
	Logger        zerolog.Logger
}

// New builds the HTTP router.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID(d.Logger))
	r.Use(AccessLog(d.Logger))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	attachRoutes(r, d)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func attachRoutes(r *gin.Engine, d Deps) {
	authH := NewAuth(d.Authenticator)

	limited := []gin.HandlerFunc{}
	if d.Limiter != nil {
		limited = append(limited, RateLimit(d.Limiter, d.Logger))
	}
	authenticate := append(limited, authH.Authenticate)

	r.POST("/authenticate", authenticate...)
	v1 := r.Group("/v1")
	{
		v1.POST("/authenticate", authenticate...)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
