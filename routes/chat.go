package routes

import (
	"errors"
	"net/http"
	"time"

	"docchat-backend/internal/ai"
	"docchat-backend/internal/chat"
	"docchat-backend/models"
	"docchat-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleChatSend runs one conversational turn against the indexed documents.
// A missing session_id starts a new session; the generated ID comes back in
// the response for the client to carry forward.
func HandleChatSend(orchestrator *chat.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid chat request", err.Error())
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		answer, err := orchestrator.Respond(c.Request.Context(), sessionID, req.Message)
		if err != nil {
			if errors.Is(err, ai.ErrProviderUnavailable) {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "provider_unavailable",
					"The AI provider is temporarily unavailable, please retry", nil)
				return
			}
			utils.RespondWithError(c, http.StatusInternalServerError, "ai_generation_error",
				"Failed to generate a response, please retry", nil)
			return
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			Answer:    answer.Text,
			Sources:   answer.Sources,
			SessionID: sessionID,
			Timestamp: time.Now(),
		})
	}
}

// HandleSessionHistory returns a session's conversation turns in order.
func HandleSessionHistory(orchestrator *chat.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		history := orchestrator.History(sessionID)
		if history == nil {
			utils.RespondWithNotFound(c, "Session not found")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"turns":      history,
		})
	}
}
