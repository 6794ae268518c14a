package frontend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jo-hoe/ransomware-detector/internal/core"
	"github.com/jo-hoe/ransomware-detector/internal/datauri"
	"github.com/jo-hoe/ransomware-detector/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	MainPageName = "index.html"
	resultName   = "result"
	fileField    = "file"
	mimePNG      = "image/png"

	// multipart framing on top of the file itself
	formOverheadBytes = 64 * 1024
)

type FrontendService struct {
	coreService *core.CoreService
	policy      upload.Policy
	iconPNG     []byte
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	service := &FrontendService{
		coreService: coreService,
		policy:      coreService.UploadPolicy(),
	}

	iconSVG, err := assetsFS.ReadFile("views/icon.svg")
	if err == nil {
		service.iconPNG, err = rasterizeSVG(iconSVG, iconPNGSize)
	}
	if err != nil {
		slog.Warn("failed to prepare png icon", "error", err)
	}
	return service
}

type indexData struct {
	Accept          string
	MaxSizeBytes    int64
	MaxSizeLabel    string
	Extensions      string
	ExtensionsLabel string
	MimeTypes       string
}

type detailRow struct {
	Key   string
	Value string
}

type resultData struct {
	Result     string
	Legitimate bool
	File       core.FileInfo
	Cached     bool
	Rows       []detailRow
}

type toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.POST("/htmx/scan", service.htmxScanHandler,
		middleware.BodyLimit(fmt.Sprintf("%dB", service.policy.MaxSizeBytes+formOverheadBytes)))

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/icon.png", service.iconPNGHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	extensions := service.policy.Extensions()
	data := indexData{
		Accept:          service.policy.AcceptAttribute(),
		MaxSizeBytes:    service.policy.MaxSizeBytes,
		MaxSizeLabel:    humanize.IBytes(uint64(service.policy.MaxSizeBytes)),
		Extensions:      strings.Join(extensions, ","),
		ExtensionsLabel: strings.ToUpper(strings.ReplaceAll(strings.Join(extensions, ", "), ".", "")),
		MimeTypes:       strings.Join(service.policy.MimeTypes(), ","),
	}
	return ctx.Render(http.StatusOK, MainPageName, data)
}

func (service *FrontendService) htmxScanHandler(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		slog.Warn("htmxScanHandler: failed to parse multipart form",
			"status", http.StatusBadRequest, "error", err)
		return service.toastOnly(ctx, "error", "Failed to read the upload")
	}
	files := form.File[fileField]
	if err := service.policy.CheckCount(len(files)); err != nil {
		return service.toastOnly(ctx, "error", rejectionMessage(err))
	}
	file := files[0]

	mimeType := file.Header.Get(echo.HeaderContentType)
	if err := service.policy.CheckFile(file.Filename, mimeType, file.Size); err != nil {
		slog.Warn("htmxScanHandler: upload rejected", "filename", file.Filename, "size", file.Size, "error", err)
		return service.toastOnly(ctx, "error", rejectionMessage(err))
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("htmxScanHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return service.toastOnly(ctx, "error", "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("htmxScanHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	content, err := io.ReadAll(src)
	if err != nil {
		slog.Error("htmxScanHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return service.toastOnly(ctx, "error", "Failed to read uploaded file")
	}

	outcome, err := service.coreService.Scan(ctx.Request().Context(), core.UploadedFile{
		Name:    file.Filename,
		Type:    mimeType,
		Size:    int64(len(content)),
		Content: datauri.Encode(mimeType, content),
	})
	if err != nil {
		slog.Warn("htmxScanHandler: scan rejected", "filename", file.Filename, "error", err)
		return service.toastOnly(ctx, "error", rejectionMessage(err))
	}
	if !outcome.Succeeded() {
		return service.toastOnly(ctx, "error", outcome.Message)
	}

	if err := setToast(ctx, "success", outcome.Message); err != nil {
		return err
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, resultName, resultData{
		Result:     outcome.Result,
		Legitimate: outcome.Prediction.Legitimate,
		File:       outcome.File,
		Cached:     outcome.Cached,
		Rows:       detailRows(outcome.Prediction.Details),
	})
}

// toastOnly answers with a notification and leaves the displayed result untouched.
func (service *FrontendService) toastOnly(ctx echo.Context, level, message string) error {
	if err := setToast(ctx, level, message); err != nil {
		return err
	}
	ctx.Response().Header().Set("HX-Reswap", "none")
	return ctx.NoContent(http.StatusOK)
}

func setToast(ctx echo.Context, level, message string) error {
	trigger, err := json.Marshal(map[string]toast{
		"showToast": {Level: level, Message: message},
	})
	if err != nil {
		return fmt.Errorf("failed to encode toast: %w", err)
	}
	ctx.Response().Header().Set("HX-Trigger", string(trigger))
	return nil
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrNoFile):
		return "Please select a file first"
	case errors.Is(err, upload.ErrTooManyFiles):
		return "Only one file can be scanned at a time"
	case errors.Is(err, upload.ErrFileTooLarge), errors.Is(err, upload.ErrUnsupportedType):
		return err.Error()
	case errors.Is(err, datauri.ErrInvalidDataURI):
		return "The upload could not be decoded"
	default:
		return "The upload was rejected"
	}
}

// detailRows flattens the response mapping into table rows sorted by key.
func detailRows(details map[string]any) []detailRow {
	rows := make([]detailRow, 0, len(details))
	for key, value := range details {
		rows = append(rows, detailRow{Key: key, Value: formatValue(value)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})
	return rows
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) iconPNGHandler(ctx echo.Context) error {
	if len(service.iconPNG) == 0 {
		return ctx.String(http.StatusNotFound, "Icon not available")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, service.iconPNG)
}
