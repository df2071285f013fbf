package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Item keys are URLs; route on the escaped path so "%2F" stays inside one segment.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.GetHealth)
	r.GET("/", handler.GetInfo)

	r.GET("/items", handler.ListItems)
	r.GET("/items/:key", handler.GetItem)
	r.POST("/items/:key/select", handler.SelectItem)
	r.POST("/items/:key/actions/:mode", handler.ExecuteAction)
	r.POST("/refresh", handler.Refresh)

	r.GET("/staging", handler.ListStaged)
	r.DELETE("/staging", handler.ClearStaged)
	r.POST("/staging/export", handler.ExportStaged)
	r.POST("/staging/:key", handler.StageItem)
	r.DELETE("/staging/:key", handler.UnstageItem)

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
