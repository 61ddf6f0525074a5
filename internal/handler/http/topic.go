package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stop-game/internal/dto"
	"stop-game/internal/service"
)

// TopicHandler 话题目录的 HTTP 处理逻辑
type TopicHandler struct {
	topicService *service.TopicService
}

func NewTopicHandler(topicService *service.TopicService) *TopicHandler {
	if topicService == nil {
		panic("TopicService cannot be nil for TopicHandler")
	}
	return &TopicHandler{topicService: topicService}
}

func topicID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid topic ID format")
		return uuid.Nil, false
	}
	return id, true
}

// ListDefaults GET /api/topics/defaults
func (h *TopicHandler) ListDefaults(c *gin.Context) {
	topics, err := h.topicService.ListDefaults(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"topics": topics})
}

// Get GET /api/topics/:id
func (h *TopicHandler) Get(c *gin.Context) {
	id, ok := topicID(c)
	if !ok {
		return
	}
	topic, err := h.topicService.Get(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, topic)
}

// ListMine GET /api/topics/mine
func (h *TopicHandler) ListMine(c *gin.Context) {
	playerID, _, ok := playerFrom(c)
	if !ok {
		return
	}
	topics, err := h.topicService.ListByUser(c.Request.Context(), playerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"topics": topics})
}

// Create POST /api/topics
func (h *TopicHandler) Create(c *gin.Context) {
	playerID, _, ok := playerFrom(c)
	if !ok {
		return
	}
	var req dto.CreateTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	topic, err := h.topicService.CreateCustom(c.Request.Context(), playerID, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, topic)
}

// Delete DELETE /api/topics/:id
func (h *TopicHandler) Delete(c *gin.Context) {
	playerID, _, ok := playerFrom(c)
	if !ok {
		return
	}
	id, ok := topicID(c)
	if !ok {
		return
	}
	if err := h.topicService.DeleteCustom(c.Request.Context(), playerID, id); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
