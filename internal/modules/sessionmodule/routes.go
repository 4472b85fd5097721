package sessionmodule

import (
	"github.com/gin-gonic/gin"
)

// registerRoutes registers all session module routes
func registerRoutes(router *gin.Engine, handler *APIHandler) {
	sessionGroup := router.Group("/api/session")
	{
		// Folder lifecycle
		sessionGroup.POST("/open", handler.HandleOpenFolder)
		sessionGroup.DELETE("", handler.HandleCloseFolder)
		sessionGroup.POST("/rescan", handler.HandleRescan)

		// Observation
		sessionGroup.GET("", handler.HandleGetState)
		sessionGroup.GET("/catalog", handler.HandleGetCatalog)
		sessionGroup.GET("/stream", handler.HandleStream)

		// Transport commands
		sessionGroup.POST("/select", handler.HandleSelect)
		sessionGroup.POST("/pause", handler.HandlePause)
		sessionGroup.POST("/resume", handler.HandleResume)
		sessionGroup.POST("/next", handler.HandleNext)
		sessionGroup.POST("/prev", handler.HandlePrev)
		sessionGroup.POST("/seek", handler.HandleSeek)

		// Render surface reports
		sessionGroup.POST("/report/position", handler.HandleReportPosition)
		sessionGroup.POST("/report/duration", handler.HandleReportDuration)
		sessionGroup.POST("/report/ended", handler.HandleReportEnded)
		sessionGroup.POST("/report/error", handler.HandleReportError)

		// Settings
		sessionGroup.POST("/settings/volume", handler.HandleSetVolume)
		sessionGroup.POST("/settings/rate", handler.HandleSetRate)
		sessionGroup.POST("/settings/shuffle", handler.HandleToggleShuffle)
		sessionGroup.POST("/settings/loop", handler.HandleToggleLoop)
		sessionGroup.POST("/settings/subtitles", handler.HandleToggleSubtitles)
		sessionGroup.POST("/settings/subtitle-size", handler.HandleSetSubtitleSize)
		sessionGroup.POST("/settings/aspect", handler.HandleCycleAspect)

		// Resume negotiation
		sessionGroup.GET("/resume-offer", handler.HandleGetResumeOffer)
		sessionGroup.POST("/resume-offer/resolve", handler.HandleResolveResume)
	}
}
