package chat

import (
	"net/http"

	"MChat/logger"
	midsec "MChat/middleware/security"
	"MChat/module/chat/message"
	"MChat/module/chat/model"

	"github.com/gin-gonic/gin"
)

// Handler serves the message history endpoint.
type Handler struct {
	store *message.Store
}

func NewHandler(store *message.Store) *Handler {
	return &Handler{store: store}
}

// History returns the conversation between the caller and :userId,
// oldest first. Requires a bound identity (auth middleware).
func (h *Handler) History(c *gin.Context) {
	id := midsec.IdentityFrom(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, "no valid token")
		return
	}
	other := c.Param("userId")
	if other == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	msgs, err := h.store.ListBetween(c.Request.Context(), id.UserID, other)
	if err != nil {
		logger.Errorf("[chat] history err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}
