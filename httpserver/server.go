package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/UnownHash/isochroner/exporter"
	"github.com/UnownHash/isochroner/stats_collector"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type StatusProvider interface {
	Status() exporter.Status
}

var _ StatusProvider = (*exporter.ExportRunner)(nil)

type HTTPServer struct {
	logger         *logrus.Logger
	ginRouter      *gin.Engine
	statusProvider StatusProvider
	statsCollector stats_collector.StatsCollector
}

func (srv *HTTPServer) Handler() http.Handler {
	return srv.ginRouter
}

// Run starts and runs the HTTP server until 'ctx' is cancelled or the server fails to start.
func (srv *HTTPServer) Run(ctx context.Context, address string, shutdownWaitTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:    address,
		Handler: srv.ginRouter,
	}

	doneCh := make(chan error, 1)

	go func() {
		var err error
		defer func() {
			doneCh <- err
		}()
		err = httpServer.ListenAndServe()
		if err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			} else {
				err = fmt.Errorf("failed to listen and start http server: %w", err)
			}
		}
	}()

	select {
	case <-ctx.Done():
		sdCtx, sdCancelFn := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer sdCancelFn()
		err := httpServer.Shutdown(sdCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errors.New("graceful HTTP server shutdown timed out")
			}
			return fmt.Errorf("error during http server shutdown: %w", err)
		}
		return <-doneCh
	case err := <-doneCh:
		return err
	}
}

func NewHTTPServer(logger *logrus.Logger, statusProvider StatusProvider, statsCollector stats_collector.StatsCollector) (*HTTPServer, error) {
	if statusProvider == nil {
		return nil, errors.New("no status provider given")
	}

	r := gin.New()
	r.Use(gin.RecoveryWithWriter(logger.Writer()))
	statsCollector.RegisterGinEngine(r)

	srv := &HTTPServer{
		logger:         logger,
		ginRouter:      r,
		statusProvider: statusProvider,
		statsCollector: statsCollector,
	}

	srv.setupRoutes()
	return srv, nil
}
