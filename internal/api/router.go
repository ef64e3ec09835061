// Package api wires the capacity handlers into a gin router.
package api

import (
	"embed"
	"html/template"
	"net/http"
	"os"
	"strings"

	"scotland-capacity/internal/api/handlers"
	"scotland-capacity/internal/api/middleware"
	"scotland-capacity/internal/api/models"
	"scotland-capacity/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded dashboard pages.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"mw": handlers.FormatMW,
	}).ParseFS(templateFS, "templates/*.html")
}

// NewRouter builds the HTTP surface over svc. staticDir is optional.
func NewRouter(svc handlers.SummaryService, logger *zap.Logger, staticDir string) (*gin.Engine, error) {
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	// Apply middleware
	router.Use(middleware.ErrorHandler(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	capacityHandler := handlers.NewCapacityHandler(svc)
	kettleHandler := handlers.NewKettleHandler(svc)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Pages
	router.GET("/", capacityHandler.Index)
	router.GET("/refresh", capacityHandler.RefreshPage)
	router.GET("/details", capacityHandler.Details)

	// JSON
	router.GET("/api/data", capacityHandler.Data)
	router.POST("/api/refresh", capacityHandler.Refresh)

	api := router.Group("/api/v1")
	{
		api.GET("/capacity", capacityHandler.Data)
		api.GET("/categories", capacityHandler.ListCategories)
		api.GET("/status", capacityHandler.Status)
		api.POST("/kettle", kettleHandler.Calculate)
	}

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			router.Static("/assets", staticDir)
			logger.Info("serving static files", zap.String("dir", staticDir))
		} else {
			logger.Info("static directory not found, skipping static file serving", zap.String("dir", staticDir))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "Not found"},
			})
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})

	return router, nil
}
