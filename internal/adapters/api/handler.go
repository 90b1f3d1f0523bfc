// Package api exposes the bidding core over JSON HTTP. It is a thin
// presentation layer: request decoding, error-to-status mapping, and nothing
// else. Authentication is an upstream concern; bidders identify themselves
// with the opaque bidder_id key.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hammerstack/bidengine/internal/domain/auction"
)

// Handler adapts HTTP requests onto the auction service.
type Handler struct {
	service *auction.Service
}

// NewHandler creates the HTTP handler.
func NewHandler(service *auction.Service) *Handler {
	return &Handler{service: service}
}

type placeBidRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
	Value    string `json:"value" binding:"required"`
}

type upsertAgentRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
	Ceiling  string `json:"ceiling" binding:"required"`
	Active   *bool  `json:"active"`
}

type deactivateAgentRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
}

type bidResponse struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	BidderID    string    `json:"bidder_id"`
	Value       string    `json:"value"`
	IsAutomatic bool      `json:"is_automatic"`
	CreatedAt   time.Time `json:"created_at"`
}

type bidResultResponse struct {
	Bid              bidResponse   `json:"bid"`
	CascadeBids      []bidResponse `json:"cascade_bids"`
	CascadeTruncated bool          `json:"cascade_truncated,omitempty"`
}

type agentResponse struct {
	ID       string `json:"id"`
	ItemID   string `json:"item_id"`
	BidderID string `json:"bidder_id"`
	Ceiling  string `json:"ceiling"`
	Active   bool   `json:"active"`
}

// PlaceBid handles POST /v1/items/:id/bids.
func (h *Handler) PlaceBid(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid value"})
		return
	}

	result, err := h.service.PlaceBid(c.Request.Context(), auction.PlaceBidCommand{
		ItemID:   itemID,
		BidderID: req.BidderID,
		Value:    value,
	})
	if err != nil {
		// Anything committed before the failure stands, depth cap and
		// mid-cascade contention alike. Reporting the error as a plain
		// rejection would invite a retry of a bid that already leads.
		if result != nil && result.Bid != nil {
			resp := toBidResultResponse(result)
			resp.CascadeTruncated = true
			c.JSON(http.StatusCreated, resp)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBidResultResponse(result))
}

// LeadingBid handles GET /v1/items/:id/leading-bid.
func (h *Handler) LeadingBid(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	bid, err := h.service.LeadingBid(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, err)
		return
	}
	if bid == nil {
		c.JSON(http.StatusOK, gin.H{"leading_bid": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leading_bid": toBidResponse(bid)})
}

// BidHistory handles GET /v1/items/:id/bids.
func (h *Handler) BidHistory(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	bids, err := h.service.BidHistory(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"bids": out})
}

// UpsertAgent handles PUT /v1/items/:id/autobid. A first call registers the
// agent; subsequent calls update its ceiling and active flag.
func (h *Handler) UpsertAgent(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var req upsertAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ceiling, err := decimal.NewFromString(req.Ceiling)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ceiling"})
		return
	}

	agent, err := h.service.RegisterAgent(c.Request.Context(), auction.RegisterAgentCommand{
		ItemID:   itemID,
		BidderID: req.BidderID,
		Ceiling:  ceiling,
	})
	if errors.Is(err, auction.ErrDuplicateAgent) {
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		agent, err = h.service.UpdateAgent(c.Request.Context(), auction.UpdateAgentCommand{
			ItemID:   itemID,
			BidderID: req.BidderID,
			Ceiling:  ceiling,
			Active:   active,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toAgentResponse(agent))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAgentResponse(agent))
}

// DeactivateAgent handles DELETE /v1/items/:id/autobid.
func (h *Handler) DeactivateAgent(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var req deactivateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.DeactivateAgent(c.Request.Context(), req.BidderID, itemID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func itemIDParam(c *gin.Context) (uuid.UUID, bool) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return uuid.UUID{}, false
	}
	return itemID, true
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrItemNotFound), errors.Is(err, auction.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrDuplicateLeadingBidder),
		errors.Is(err, auction.ErrValueTooLow),
		errors.Is(err, auction.ErrExceedsOwnAutoBidCeiling),
		errors.Is(err, auction.ErrInvalidCeiling),
		errors.Is(err, auction.ErrInvalidBidValue):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrDuplicateAgent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrContention):
		// Transient: the client may simply retry.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func toBidResponse(b *auction.Bid) bidResponse {
	return bidResponse{
		ID:          b.ID.String(),
		ItemID:      b.ItemID.String(),
		BidderID:    b.BidderID,
		Value:       b.Value.String(),
		IsAutomatic: b.IsAutomatic,
		CreatedAt:   b.CreatedAt,
	}
}

func toBidResultResponse(r *auction.BidResult) bidResultResponse {
	out := bidResultResponse{
		Bid:         toBidResponse(r.Bid),
		CascadeBids: make([]bidResponse, 0, len(r.CascadeBids)),
	}
	for _, b := range r.CascadeBids {
		out.CascadeBids = append(out.CascadeBids, toBidResponse(b))
	}
	return out
}

func toAgentResponse(a *auction.AutoBidAgent) agentResponse {
	return agentResponse{
		ID:       a.ID.String(),
		ItemID:   a.ItemID.String(),
		BidderID: a.BidderID,
		Ceiling:  a.Ceiling.String(),
		Active:   a.Active,
	}
}
