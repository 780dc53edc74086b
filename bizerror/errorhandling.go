package bizerror

import (
	"docflow/common"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		abort(c, respond.Status, respond.Code, respond.Message, respond.Data)
		return
	}

	// bad request:  io.EOF (no body).
	if errors.Is(genericErr, io.EOF) {
		abort(c, http.StatusBadRequest, "bad_request.body_not_found", "body not found", nil)
		return
	}
	// bad request: json syntax Error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		abort(c, http.StatusBadRequest, "bad_request.invalid_body_format", "invalid body format", syntaxErr.Error())
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		abort(c, http.StatusBadRequest, "bad_request.validation_failed", "validation failed", validationErr.Error())
		return
	}

	switch {
	case errors.Is(genericErr, ErrUnauthenticated):
		abort(c, http.StatusUnauthorized, "common.unauthenticated", "unauthenticated", nil)
	case errors.Is(genericErr, ErrUnauthorized):
		abort(c, http.StatusForbidden, "security.unauthorized", "actor is not allowed to act on this step", nil)
	case errors.Is(genericErr, ErrAlreadyDecided):
		abort(c, http.StatusConflict, "approval.already_decided", "step already decided", nil)
	case errors.Is(genericErr, ErrInvalidDefinition):
		abort(c, http.StatusBadRequest, "workflow.invalid_definition", genericErr.Error(), nil)
	case errors.Is(genericErr, ErrDefinitionSuperseded):
		abort(c, http.StatusConflict, "workflow.superseded", "workflow definition superseded", nil)
	case errors.Is(genericErr, ErrInvalidState):
		abort(c, http.StatusConflict, "approval.invalid_state", genericErr.Error(), nil)
	case errors.Is(genericErr, ErrNoMatchingWorkflow):
		abort(c, http.StatusNotFound, "workflow.no_matching_workflow", "no matching workflow", nil)
	case errors.Is(genericErr, ErrTooManyRequests):
		abort(c, http.StatusTooManyRequests, "common.too_many_requests", "too many requests", nil)
	case errors.Is(genericErr, gorm.ErrRecordNotFound) || errors.Is(genericErr, ErrNotFound):
		abort(c, http.StatusNotFound, "common.record_not_found", "record not found", nil)
	default:
		abort(c, http.StatusInternalServerError, "common.internal_server_error", err.Error(), nil)
	}
}

func abort(c *gin.Context, status int, code, message string, data interface{}) {
	c.JSON(status, &common.ErrorBody{Code: code, Message: message, Data: data})
	c.Abort()
}
