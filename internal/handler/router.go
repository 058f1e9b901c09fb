package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/middleware"
	v1 "github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Pinger func(ctx context.Context) error

type RouterDeps struct {
	Prescriptions *service.PrescriptionService
	Pharmacies    *service.PharmacyService
	Tokens        middleware.TokenValidator
	RateLimiter   *middleware.RateLimiter
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
	Ready         Pinger
	Log           *zap.Logger
	// Proxies allowed to set X-Forwarded-For. Nil means the TCP peer is the client.
	TrustedProxies []string
}

func NewRouter(d RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	// ClientIP feeds the rate limiter and audit rows.
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("setting trusted proxies: %w", err)
	}
	r.Use(
		middleware.Recovery(d.Log),
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Metrics(d.Metrics),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			d.Log.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))

	api := r.Group("/api/v1", d.RateLimiter.Middleware(), middleware.Authenticate(d.Tokens))
	v1.RegisterRoutes(api,
		v1.NewPrescriptionHandler(d.Prescriptions),
		v1.NewPharmacyHandler(d.Pharmacies),
	)

	return r, nil
}
