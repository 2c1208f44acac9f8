package routes

import (
	"fmt"
	"net/http"

	"docchat-backend/services"
	"docchat-backend/utils"

	"github.com/gin-gonic/gin"
)

// HandleSessionExport streams a session transcript as JSON or an Excel
// workbook, selected by the format query parameter.
func HandleSessionExport(exporter *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		format := services.ExportFormat(c.DefaultQuery("format", "json"))

		result, err := exporter.ExportSession(c.Request.Context(), sessionID, format)
		if err != nil {
			utils.RespondWithBadRequest(c, "Failed to export session", err.Error())
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		c.Data(http.StatusOK, result.ContentType, result.Data)
	}
}
