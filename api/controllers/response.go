package controllers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse is the unified API response envelope.
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"ok"`
	Data   interface{} `json:"data,omitempty"`
}

// OK renders a success envelope.
func OK(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, APIResponse{Status: 0, Msg: "ok", Data: data})
}

// Fail renders an error envelope with the given HTTP status.
func Fail(w http.ResponseWriter, r *http.Request, httpStatus int, msg string) {
	render.Status(r, httpStatus)
	render.JSON(w, r, APIResponse{Status: httpStatus, Msg: msg})
}
