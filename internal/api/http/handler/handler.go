package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	StatusErr          = "error"
	StatusSuccess      = "success"
	StatusNotAvailable = "not available"
)

type BaseHandler struct{}

// ResponseWithData is the success/error envelope carrying a payload object.
type ResponseWithData struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// ResponseWithMessage carries only a human-readable message.
type ResponseWithMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NoMethod(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ResponseWithMessage{
		Status:  StatusNotAvailable,
		Message: "method not allowed on this endpoint",
	})
}

func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, ResponseWithMessage{
		Status:  StatusNotAvailable,
		Message: "page not found",
	})
}
