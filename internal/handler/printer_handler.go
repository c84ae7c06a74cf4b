// internal/handler/printer_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-service/internal/model"
	"label-service/internal/service"
	"label-service/internal/utils"
)

// PrinterHandler handles printer and print job submission requests
type PrinterHandler struct {
	printerService *service.PrinterService
	maxUploadBytes int64
	logger         *utils.ServiceLogger
}

// NewPrinterHandler creates a new printer handler. maxUploadBytes <= 0 leaves
// uploads unbounded.
func NewPrinterHandler(printerService *service.PrinterService, maxUploadBytes int64, logger *zap.Logger) *PrinterHandler {
	return &PrinterHandler{
		printerService: printerService,
		maxUploadBytes: maxUploadBytes,
		logger:         utils.NewServiceLogger(logger, "printer-handler"),
	}
}

// RegisterRoutes registers printer routes
func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printers := router.Group("/printers")
	{
		printers.GET("", h.ListPrinters)
		printers.GET("/models", h.ListModels)

		printerRoutes := printers.Group("/:name")
		{
			printerRoutes.GET("", h.GetPrinter)
			printerRoutes.POST("/print", h.Print)
			printerRoutes.GET("/info", h.GetInfo)
		}
	}
}

// ListPrinters lists configured printers
// @Summary List printers
// @Description Get configured printers with their model profile and busy flag
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Printer} "Printers retrieved successfully"
// @Router /printers [get]
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Printers retrieved successfully", h.printerService.ListPrinters())
}

// ListModels lists supported printer models
// @Summary List printer models
// @Description Get the supported model table with maximum width and density
// @Tags Printers
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]niimbot.Model} "Models retrieved successfully"
// @Router /printers/models [get]
func (h *PrinterHandler) ListModels(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Models retrieved successfully", h.printerService.Models())
}

// GetPrinter returns one printer
// @Summary Get printer
// @Tags Printers
// @Produce json
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse{data=model.Printer} "Printer retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Router /printers/{name} [get]
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	printer, err := h.printerService.GetPrinter(c.Param("name"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer retrieved successfully", printer)
}

// Print prints an uploaded image
// @Summary Print a label
// @Description Convert an uploaded PNG, JPEG, GIF or BMP image to a 1-bit raster and print it
// @Tags Printers
// @Accept multipart/form-data
// @Produce json
// @Param name path string true "Printer name"
// @Param image formData file true "Label image"
// @Param density formData int false "Print density (1-5), defaults to the printer setting"
// @Param label_type formData int false "Label type (1-3), defaults to the printer setting"
// @Param rotate formData int false "Clockwise rotation" Enums(0, 90, 180, 270)
// @Param dither formData bool false "Floyd-Steinberg dithering instead of a threshold"
// @Param threshold formData int false "Luminance threshold (0-255)"
// @Success 200 {object} utils.APIResponse{data=model.PrintJob} "Label printed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Failure 409 {object} utils.APIResponse "Printer busy or port ambiguous"
// @Failure 502 {object} utils.APIResponse "Printer reported an error"
// @Failure 503 {object} utils.APIResponse "Printer not reachable"
// @Failure 504 {object} utils.APIResponse "Printer did not respond"
// @Router /printers/{name}/print [post]
func (h *PrinterHandler) Print(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.printerService.GetPrinter(name); err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Image too large", err)
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Missing image upload", err)
		return
	}

	req, validationErrors := parsePrintForm(c)
	if len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read image upload", err)
		return
	}
	defer file.Close()

	req.PrinterName = name
	req.Image = file

	job, err := h.printerService.Print(c.Request.Context(), req)
	if err != nil {
		h.respondPrintError(c, job, err)
		return
	}

	h.logger.Info("Label printed",
		zap.String("printer", name),
		zap.String("job_id", job.ID.String()),
		zap.Int("rows", job.Rows),
	)
	utils.SuccessResponse(c, http.StatusOK, "Label printed", job)
}

func parsePrintForm(c *gin.Context) (*service.PrintRequest, map[string]string) {
	req := &service.PrintRequest{}
	errs := make(map[string]string)

	parseInt := func(field string, min, max int) int {
		raw := c.PostForm(field)
		if raw == "" {
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < min || v > max {
			errs[field] = "must be an integer between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
			return 0
		}
		return v
	}

	req.Density = parseInt("density", 1, 5)
	req.LabelType = parseInt("label_type", 1, 3)
	if c.PostForm("threshold") != "" {
		threshold := uint8(parseInt("threshold", 0, 255))
		req.Threshold = &threshold
	}

	switch rotate := parseInt("rotate", 0, 270); rotate {
	case 0, 90, 180, 270:
		req.Rotate = rotate
	default:
		errs["rotate"] = "must be one of 0, 90, 180, 270"
	}

	if raw := c.PostForm("dither"); raw != "" {
		dither, err := strconv.ParseBool(raw)
		if err != nil {
			errs["dither"] = "must be a boolean"
		}
		req.Dither = dither
	}

	return req, errs
}

// respondPrintError writes the error response for a failed print. When the job
// was started its record is returned alongside the error.
func (h *PrinterHandler) respondPrintError(c *gin.Context, job *model.PrintJob, err error) {
	switch {
	case errors.Is(err, service.ErrPrinterNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
	case errors.Is(err, service.ErrPrinterBusy):
		utils.ErrorResponse(c, http.StatusConflict, "Printer is busy", err)
	case job != nil:
		h.logger.Error("Print failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		utils.JobErrorResponse(c, "Print failed", err, job)
	default:
		h.logger.Error("Print failed", zap.Error(err))
		utils.DomainErrorResponse(c, "Print failed", err)
	}
}

// GetInfo reads device info from the printer
// @Summary Get printer device info
// @Description Connect to the printer and read serial number, firmware and hardware version and battery level
// @Tags Printers
// @Produce json
// @Param name path string true "Printer name"
// @Success 200 {object} utils.APIResponse{data=niimbot.DeviceInfo} "Printer info retrieved"
// @Failure 404 {object} utils.APIResponse "Printer not found"
// @Failure 409 {object} utils.APIResponse "Printer busy"
// @Failure 503 {object} utils.APIResponse "Printer not reachable"
// @Router /printers/{name}/info [get]
func (h *PrinterHandler) GetInfo(c *gin.Context) {
	info, err := h.printerService.Info(c.Request.Context(), c.Param("name"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPrinterNotFound):
			utils.ErrorResponse(c, http.StatusNotFound, "Printer not found", err)
		case errors.Is(err, service.ErrPrinterBusy):
			utils.ErrorResponse(c, http.StatusConflict, "Printer is busy", err)
		default:
			h.logger.Error("Failed to read printer info", zap.Error(err))
			utils.DomainErrorResponse(c, "Failed to read printer info", err)
		}
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Printer info retrieved", info)
}
