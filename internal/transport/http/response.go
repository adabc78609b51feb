package httptransport

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vesta-voice/internal/platform/errors"
)

// APIResponse 是 /api 下所有接口的返回信封。Kind 仅在失败时出现
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
}

// OK writes a 200 envelope around data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Message: "ok",
		Code:    http.StatusOK,
	})
}

// Fail aborts the request with a failure envelope. A typed platform error
// contributes its user message and kind; the cause stays in the logs.
func Fail(c *gin.Context, status int, err error) {
	message := http.StatusText(status)
	kind := errors.KindUnknown
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		message = typed.Message
		kind = typed.Kind
	} else if err != nil {
		message = err.Error()
	}
	c.AbortWithStatusJSON(status, APIResponse{
		Success: false,
		Data:    gin.H{"error": message},
		Message: message,
		Code:    status,
		Kind:    string(kind),
	})
}
