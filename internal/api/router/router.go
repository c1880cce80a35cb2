package router

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/meme-generator/internal/api/handlers/meme"
	"github.com/aliskhannn/meme-generator/internal/middleware"
)

func Setup(h *meme.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := r.Group("/api")

	api.POST("/memes", h.Generate)            // synchronous generation
	api.POST("/memes/async", h.GenerateAsync) // enqueue generation task
	api.GET("/memes/:id", h.Get)              // generation result metadata
	api.GET("/memes/:id/image", h.GetImage)   // final meme image bytes
	api.GET("/styles", h.Styles)              // predefined style catalog

	return r
}
