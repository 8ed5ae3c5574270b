package httptransport

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/service"
)

// AliasHandler 别名接口处理器
type AliasHandler struct {
	aliases   *service.AliasService
	retrieval config.RetrievalConfig
	logger    *zap.Logger
}

// NewAliasHandler 创建别名接口处理器
func NewAliasHandler(aliases *service.AliasService, retrieval config.RetrievalConfig, logger *zap.Logger) *AliasHandler {
	return &AliasHandler{
		aliases:   aliases,
		retrieval: retrieval,
		logger:    logger,
	}
}

type secretRequest struct {
	Secret string `json:"secret" binding:"required"`
}

type listMessagesRequest struct {
	Secret string `json:"secret" binding:"required"`
	Limit  *int   `json:"limit"` // 省略时使用默认条数，0 表示全部
}

// Resolve godoc
// @Summary 解析别名地址
// @Description 根据密钥计算摘要和别名地址，不访问邮箱
// @Tags Alias
// @Accept json
// @Produce json
// @Param request body secretRequest true "别名密钥"
// @Success 200 {object} Response{data=object{digest=string,address=string}}
// @Failure 400 {object} Response
// @Router /v1/alias/resolve [post]
func (h *AliasHandler) Resolve(c *gin.Context) {
	var req secretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	digest, address, err := h.aliases.ResolveAlias(req.Secret)
	if err != nil {
		h.fail(c, err)
		return
	}

	Success(c, gin.H{
		"digest":  digest,
		"address": address,
	})
}

// ListMessages godoc
// @Summary 列出别名邮件
// @Description 返回发往该别名的邮件，最新的在前。邮箱不可用时返回空列表和 503
// @Tags Alias
// @Accept json
// @Produce json
// @Param request body listMessagesRequest true "别名密钥和条数上限"
// @Success 200 {object} Response{data=object{alias=string,items=[]domain.Message,count=int}}
// @Failure 400 {object} Response
// @Failure 503 {object} Response
// @Router /v1/alias/messages [post]
func (h *AliasHandler) ListMessages(c *gin.Context) {
	var req listMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Limit != nil && *req.Limit < 0 {
		BadRequest(c, MsgInvalidLimit)
		return
	}

	address, err := h.aliases.Address(req.Secret)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.retrieval.Timeout)
	defer cancel()

	messages, err := h.aliases.ListMessages(ctx, req.Secret, h.resolveLimit(req.Limit))
	data := gin.H{
		"alias": address,
		"items": messages,
		"count": len(messages),
	}
	if err != nil {
		if errors.Is(err, domain.ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
			ServiceUnavailable(c, GetErrorMessage(err), data)
			return
		}
		h.fail(c, err)
		return
	}

	Success(c, data)
}

// GetMessage godoc
// @Summary 获取单封邮件
// @Description 邮件不存在和不属于该别名返回相同的 404
// @Tags Alias
// @Accept json
// @Produce json
// @Param id path string true "邮件序号"
// @Param request body secretRequest true "别名密钥"
// @Success 200 {object} Response{data=domain.Message}
// @Failure 404 {object} Response
// @Router /v1/alias/messages/{id} [post]
func (h *AliasHandler) GetMessage(c *gin.Context) {
	var req secretRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.retrieval.Timeout)
	defer cancel()

	msg, err := h.aliases.GetMessage(ctx, req.Secret, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	Success(c, msg)
}

// resolveLimit 省略时使用默认条数；0 表示全部。MaxLimit 大于 0 时任何结果都不超过它
func (h *AliasHandler) resolveLimit(limit *int) int {
	n := h.retrieval.DefaultLimit
	if limit != nil {
		n = *limit
	}
	if ceiling := h.retrieval.MaxLimit; ceiling > 0 && (n == 0 || n > ceiling) {
		n = ceiling
	}
	return n
}

func (h *AliasHandler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	Error(c, status, msg)
}
