package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response: data is the payload on
// success and a human-readable message on failure.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Fail(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, Envelope{Success: false, Data: msg})
}

func AbortFail(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{Success: false, Data: msg})
}
