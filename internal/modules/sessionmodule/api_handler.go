package sessionmodule

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/playra/internal/modules/progressmodule"
)

// APIHandler handles HTTP requests for the session module
type APIHandler struct {
	manager *Manager
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(manager *Manager) *APIHandler {
	return &APIHandler{manager: manager}
}

// HandleOpenFolder opens a root folder as the active session.
func (h *APIHandler) HandleOpenFolder(c *gin.Context) {
	var request struct {
		Root string `json:"root" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.manager.OpenFolder(c.Request.Context(), request.Root)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"state":   session.State(),
		"catalog": session.Catalog(),
	}
	if offer := h.manager.ResumeOffer(); offer != nil {
		response["resumeOffer"] = offer
	}
	c.JSON(http.StatusOK, response)
}

// HandleCloseFolder closes the active session, flushing progress.
func (h *APIHandler) HandleCloseFolder(c *gin.Context) {
	h.manager.Close()
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// HandleRescan rebuilds the catalog for the open folder.
func (h *APIHandler) HandleRescan(c *gin.Context) {
	if err := h.manager.Rescan(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rescanned": true})
}

// HandleGetState returns the observable session state.
func (h *APIHandler) HandleGetState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// HandleGetCatalog returns the session's catalog.
func (h *APIHandler) HandleGetCatalog(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Catalog())
}

// HandleStream serves the current playable byte source.
func (h *APIHandler) HandleStream(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	source := session.Source()
	if source == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no byte source ready"})
		return
	}
	if source.Path == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "byte source has no servable path"})
		return
	}
	c.File(source.Path)
}

// HandleSelect selects the catalog item at the given index.
func (h *APIHandler) HandleSelect(c *gin.Context) {
	var request struct {
		Index *int `json:"index" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Select(*request.Index); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

// HandlePause pauses playback.
func (h *APIHandler) HandlePause(c *gin.Context) {
	h.transport(c, func(s *Session) error { s.Pause(); return nil })
}

// HandleResume resumes paused playback.
func (h *APIHandler) HandleResume(c *gin.Context) {
	h.transport(c, func(s *Session) error { s.Resume(); return nil })
}

// HandleNext advances to the next item per the advance policy.
func (h *APIHandler) HandleNext(c *gin.Context) {
	h.transport(c, func(s *Session) error { return s.Next() })
}

// HandlePrev restarts the current item or moves to the previous one.
func (h *APIHandler) HandlePrev(c *gin.Context) {
	h.transport(c, func(s *Session) error { return s.Prev() })
}

// HandleSeek seeks within the current item.
func (h *APIHandler) HandleSeek(c *gin.Context) {
	var request struct {
		Position *float64 `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { return s.Seek(*request.Position) })
}

// HandleReportPosition records the render surface's playback position.
func (h *APIHandler) HandleReportPosition(c *gin.Context) {
	var request struct {
		Position *float64 `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { s.ReportPosition(*request.Position); return nil })
}

// HandleReportDuration records the item duration reported by the render
// surface.
func (h *APIHandler) HandleReportDuration(c *gin.Context) {
	var request struct {
		Duration *float64 `json:"duration" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { s.ReportDuration(*request.Duration); return nil })
}

// HandleReportEnded marks the current item as finished.
func (h *APIHandler) HandleReportEnded(c *gin.Context) {
	h.transport(c, func(s *Session) error { s.ReportEnded(); return nil })
}

// HandleReportError reports a render failure for the current item.
func (h *APIHandler) HandleReportError(c *gin.Context) {
	var request struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { s.ReportError(request.Message); return nil })
}

// HandleSetVolume sets the volume.
func (h *APIHandler) HandleSetVolume(c *gin.Context) {
	var request struct {
		Volume *float64 `json:"volume" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { return s.SetVolume(*request.Volume) })
}

// HandleSetRate sets the playback rate.
func (h *APIHandler) HandleSetRate(c *gin.Context) {
	var request struct {
		Rate *float64 `json:"rate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { return s.SetPlaybackRate(*request.Rate) })
}

// HandleToggleShuffle toggles shuffle mode.
func (h *APIHandler) HandleToggleShuffle(c *gin.Context) {
	h.transport(c, func(s *Session) error {
		_, err := s.ToggleShuffle()
		return err
	})
}

// HandleToggleLoop toggles loop mode.
func (h *APIHandler) HandleToggleLoop(c *gin.Context) {
	h.transport(c, func(s *Session) error {
		_, err := s.ToggleLoop()
		return err
	})
}

// HandleToggleSubtitles toggles subtitle visibility.
func (h *APIHandler) HandleToggleSubtitles(c *gin.Context) {
	h.transport(c, func(s *Session) error {
		_, err := s.ToggleSubtitles()
		return err
	})
}

// HandleSetSubtitleSize sets the subtitle font size.
func (h *APIHandler) HandleSetSubtitleSize(c *gin.Context) {
	var request struct {
		Size *int `json:"size" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.transport(c, func(s *Session) error { return s.SetSubtitleFontSize(*request.Size) })
}

// HandleCycleAspect steps to the next aspect ratio mode.
func (h *APIHandler) HandleCycleAspect(c *gin.Context) {
	h.transport(c, func(s *Session) error {
		_, err := s.CycleAspectRatio()
		return err
	})
}

// HandleGetResumeOffer returns the pending resume offer, if any.
func (h *APIHandler) HandleGetResumeOffer(c *gin.Context) {
	offer := h.manager.ResumeOffer()
	if offer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pending resume offer"})
		return
	}
	c.JSON(http.StatusOK, offer)
}

// HandleResolveResume applies the user's resume decision.
func (h *APIHandler) HandleResolveResume(c *gin.Context) {
	var request struct {
		Choice string `json:"choice" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	choice := progressmodule.ResumeChoice(request.Choice)
	switch choice {
	case progressmodule.ChoiceResume, progressmodule.ChoiceDismiss, progressmodule.ChoiceNewFolder:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown choice: " + request.Choice})
		return
	}

	if err := h.manager.ResolveResume(choice); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// transport runs a command against the active session and returns its state.
func (h *APIHandler) transport(c *gin.Context, fn func(*Session) error) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(session); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (h *APIHandler) session(c *gin.Context) (*Session, bool) {
	session := h.manager.Session()
	if session == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no folder open"})
		return nil, false
	}
	return session, true
}

func (h *APIHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNoCatalog), errors.Is(err, ErrNoSelection), errors.Is(err, ErrSessionClosed):
		status = http.StatusConflict
	case errors.Is(err, ErrIndexOutOfRange), errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidFontSize):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
