package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/ransomware-detector/internal/core"
	"github.com/jo-hoe/ransomware-detector/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ProbePath   = "/probe"
	ScanPath    = "/api/v1/scan"
	MetricsPath = "/metrics"

	// JSON framing and file name around the encoded content
	jsonOverheadBytes = 64 * 1024
)

type APIService struct {
	coreService *core.CoreService
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET(ProbePath, func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	e.POST(ScanPath, s.scanHandler, middleware.BodyLimit(fmt.Sprintf("%dB", s.maxBodyBytes())))

	registry := s.coreService.Metrics().Registry
	e.GET(MetricsPath, echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
}

// maxBodyBytes allows for the base64 growth of the largest accepted file.
func (s *APIService) maxBodyBytes() int64 {
	maxSize := s.coreService.UploadPolicy().MaxSizeBytes
	return (maxSize+2)/3*4 + jsonOverheadBytes
}

func (s *APIService) scanHandler(c echo.Context) error {
	var file core.UploadedFile
	if err := c.Bind(&file); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body")
	}
	if err := c.Validate(&file); err != nil {
		return err
	}

	outcome, err := s.coreService.Scan(c.Request().Context(), file)
	if err != nil {
		status := statusForInputError(err)
		slog.Warn("scanHandler: scan rejected", "status", status, "filename", file.Name, "error", err)
		return echo.NewHTTPError(status, err.Error())
	}

	switch outcome.Status {
	case core.StatusSucceeded:
		return c.JSON(http.StatusOK, outcome)
	case core.StatusServiceError:
		return c.JSON(http.StatusUnprocessableEntity, outcome)
	default:
		return c.JSON(http.StatusBadGateway, outcome)
	}
}

func statusForInputError(err error) int {
	if errors.Is(err, upload.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
