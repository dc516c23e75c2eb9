package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UnownHash/isochroner/exporter"
	"github.com/UnownHash/isochroner/version"
)

func (srv *HTTPServer) handleGetStatus(c *gin.Context) {
	type statusResponse struct {
		Status exporter.Status `json:"status"`
	}

	c.JSON(http.StatusOK, statusResponse{
		Status: srv.statusProvider.Status(),
	})
}

func (srv *HTTPServer) handleGetVersion(c *gin.Context) {
	type versionResponse struct {
		Version string `json:"version"`
	}

	c.JSON(http.StatusOK, versionResponse{
		Version: version.APP_VERSION,
	})
}
