package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all bidding routes mounted.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	v1 := router.Group("/v1")
	items := v1.Group("/items")
	items.POST("/:id/bids", handler.PlaceBid)
	items.GET("/:id/bids", handler.BidHistory)
	items.GET("/:id/leading-bid", handler.LeadingBid)
	items.PUT("/:id/autobid", handler.UpsertAgent)
	items.DELETE("/:id/autobid", handler.DeactivateAgent)

	return router
}
