package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// Envelope represents the common response contract. Every body carries a
// success flag; failures always carry a structured error.
type Envelope struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *appErrors.Error       `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response wrapping data with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Success: true, Data: data}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Fields sends a flat success body: the provided fields are merged next to
// "success": true, e.g. {"success": true, "disposals": [...]}.
func Fields(c *gin.Context, status int, fields gin.H, meta ...map[string]interface{}) {
	noStore(c)
	body := gin.H{"success": true}
	for k, v := range fields {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	if len(meta) > 0 && len(meta[0]) > 0 {
		body["meta"] = meta[0]
	}
	c.JSON(status, body)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, fields gin.H) {
	Fields(c, http.StatusCreated, fields)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	c.JSON(appErr.Status, Envelope{Success: false, Error: appErr})
}

// File streams a rendered attachment.
func File(c *gin.Context, filename, contentType string, body []byte) {
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
