package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NooksApp/accelerator-core/internal/app/orch"
	"github.com/NooksApp/accelerator-core/internal/core"
	"github.com/NooksApp/accelerator-core/internal/session"
)

type Handlers struct {
	Core *session.Core
}

func (h *Handlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected":  h.Core.Connected(),
		"callActive": h.Core.CallActive(),
		"pubSub":     h.Core.GetPubSub(),
	})
}

type startCallRequest struct {
	Name      string `json:"name"`
	Container string `json:"container"`
	AudioOnly bool   `json:"audioOnly"`
}

func (h *Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	started, err := h.Core.StartCall(c.Request.Context(), core.PublisherProps{
		Name:      req.Name,
		Container: req.Container,
		AudioOnly: req.AudioOnly,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, orch.ErrConnectionLimit) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pubSub": started.PubSub})
}

func (h *Handlers) EndCall(c *gin.Context) {
	h.Core.EndCall()
	c.JSON(http.StatusOK, gin.H{"pubSub": h.Core.GetPubSub()})
}

type signalRequest struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	To   string `json:"to"`
}

func (h *Handlers) SendSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid type"})
		return
	}
	if err := h.Core.Signal(c.Request.Context(), req.Type, req.Data, req.To); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type toggleRequest struct {
	HandleID string `json:"handleId"`
	Track    string `json:"track"` // audio or video
	Enable   bool   `json:"enable"`
}

func (h *Handlers) ToggleLocalAV(c *gin.Context) {
	h.toggle(c, h.Core.ToggleLocalAudio, h.Core.ToggleLocalVideo)
}

func (h *Handlers) ToggleRemoteAV(c *gin.Context) {
	h.toggle(c, h.Core.ToggleRemoteAudio, h.Core.ToggleRemoteVideo)
}

func (h *Handlers) toggle(c *gin.Context, audio, video func(string, bool) error) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.HandleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}
	fn := video
	if req.Track == string(core.TrackAudio) {
		fn = audio
	}
	if err := fn(req.HandleID, req.Enable); err != nil {
		if errors.Is(err, orch.ErrUnknownHandle) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown handle id"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
