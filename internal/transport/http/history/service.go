package history

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	domainhistory "ai-images-server-go/internal/domain/history"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/logging"
	httptransport "ai-images-server-go/internal/transport/http"
)

// Service exposes the upload history list.
type Service struct {
	store  domainhistory.Store
	logger *logging.Logger
}

func NewService(store domainhistory.Store, logger *logging.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New(errors.KindConfig, "history.http.new", "history store is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "history.http.new", "logger is required")
	}
	return &Service{store: store, logger: logger}, nil
}

// Register 注册历史记录路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/history", s.handleList)
	router.DELETE("/history", s.handleClear)
	return nil
}

// handleList 获取最近的上传记录
// @Summary List recent uploads
// @Tags History
// @Produce json
// @Success 200 {object} httptransport.APIResponse{data=[]domainhistory.Entry}
// @Failure 500 {object} httptransport.APIResponse
// @Router /history [get]
func (s *Service) handleList(c *gin.Context) {
	entries, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.ErrorTrace("History", httptransport.TraceID(c), "list failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, errors.Public(err), nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, entries, "")
}

// handleClear 清空上传记录
// @Summary Clear upload history
// @Tags History
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Failure 500 {object} httptransport.APIResponse
// @Router /history [delete]
func (s *Service) handleClear(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context()); err != nil {
		s.logger.ErrorTrace("History", httptransport.TraceID(c), "clear failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, errors.Public(err), nil)
		return
	}
	s.logger.InfoTrace("History", httptransport.TraceID(c), "history cleared")
	httptransport.RespondSuccess(c, http.StatusOK, nil, "history cleared")
}
