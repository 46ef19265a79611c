package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/cryptopulse/internal/domain/dto"
	"github.com/guttosm/cryptopulse/internal/domain/errs"
	"github.com/guttosm/cryptopulse/internal/ingestion"
	"github.com/guttosm/cryptopulse/internal/service"
)

const uploadField = "file"

// Handler provides HTTP handlers for the price statistics and CSV import endpoints.
//
// Handlers only validate input, call the service layer and shape DTOs. Failures are
// attached with c.Error and rendered by middleware.ErrorHandler.
type Handler struct {
	stats    service.StatsService
	importer ingestion.StreamImporter
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - stats:    read-side statistics service.
//   - importer: CSV pipeline used by POST /api/v1/import.
func NewHandler(stats service.StatsService, importer ingestion.StreamImporter) *Handler {
	return &Handler{stats: stats, importer: importer}
}

// ListSymbols godoc
// @Summary      List supported cryptos
// @Description  Returns every symbol that has been imported, in first-seen order
// @Tags         symbols
// @Produce      json
// @Success      200  {array}   string             "Symbols"
// @Failure      404  {object}  dto.ErrorResponse  "No symbols imported"
// @Failure      429  {object}  dto.ErrorResponse  "Too many requests"
// @Failure      500  {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/symbols [get]
func (h *Handler) ListSymbols(c *gin.Context) {
	symbols, err := h.stats.ListSymbols(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, symbols)
}

// GetStats godoc
// @Summary      Get stats for a crypto
// @Description  Returns oldest, newest, min and max price for the symbol (case-sensitive)
// @Tags         symbols
// @Produce      json
// @Param        symbol  path      string  true  "Crypto symbol" example(BTC)
// @Success      200     {object}  dto.StatsResponse  "Success"
// @Failure      404     {object}  dto.ErrorResponse  "No price data for symbol"
// @Failure      429     {object}  dto.ErrorResponse  "Too many requests"
// @Failure      500     {object}  dto.ErrorResponse  "Internal Error"
// @Router       /api/v1/symbols/{symbol}/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		_ = c.Error(errs.InvalidInput("symbol is required"))
		return
	}

	stats, err := h.stats.StatsFor(c.Request.Context(), symbol)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStatsResponse(stats))
}

// ListNormalizedRanges godoc
// @Summary      Normalized range for every crypto
// @Description  Returns (max-min)/min per symbol over all data, sorted descending
// @Tags         normalized-range
// @Produce      json
// @Success      200  {array}   dto.NormalizedRangeResponse  "Success"
// @Failure      404  {object}  dto.ErrorResponse            "No data"
// @Failure      429  {object}  dto.ErrorResponse            "Too many requests"
// @Failure      500  {object}  dto.ErrorResponse            "Internal Error"
// @Router       /api/v1/normalized-range [get]
func (h *Handler) ListNormalizedRanges(c *gin.Context) {
	ranges, err := h.stats.NormalizedRanges(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewNormalizedRangeList(ranges))
}

// GetHighestNormalizedRange godoc
// @Summary      Highest normalized range for a day
// @Description  Returns the symbol with the largest normalized range among prices of the given calendar day
// @Tags         normalized-range
// @Produce      json
// @Param        date  query     string  true  "Day in YYYY-MM-DD" example(2022-01-01)
// @Success      200   {object}  dto.NormalizedRangeResponse  "Success"
// @Failure      400   {object}  dto.ErrorResponse            "Missing or invalid date"
// @Failure      404   {object}  dto.ErrorResponse            "No data for the day"
// @Failure      429   {object}  dto.ErrorResponse            "Too many requests"
// @Failure      500   {object}  dto.ErrorResponse            "Internal Error"
// @Router       /api/v1/normalized-range/highest [get]
func (h *Handler) GetHighestNormalizedRange(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		_ = c.Error(errs.InvalidInput("date is required, expected YYYY-MM-DD"))
		return
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		_ = c.Error(errs.InvalidInput("invalid date %q, expected YYYY-MM-DD", raw))
		return
	}

	best, err := h.stats.HighestNormalizedRangeForDate(c.Request.Context(), day)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewNormalizedRangeResponse(*best))
}

// ImportCSV godoc
// @Summary      Import a CSV of prices
// @Description  Upserts "timestamp,symbol,price" lines; malformed lines are skipped and counted
// @Tags         import
// @Accept       multipart/form-data
// @Produce      plain
// @Param        file  formData  file    true  "CSV file"
// @Success      200   {string}  string  "CSV data imported successfully: 3 accepted, 0 skipped"
// @Failure      400   {object}  dto.ErrorResponse  "Missing file or unreadable stream"
// @Failure      429   {object}  dto.ErrorResponse  "Too many requests"
// @Failure      500   {object}  dto.ErrorResponse  "Import failed"
// @Router       /api/v1/import [post]
func (h *Handler) ImportCSV(c *gin.Context) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		_ = c.Error(errs.InvalidInput("multipart field %q is required", uploadField))
		return
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(fmt.Errorf("open upload %s: %w", fh.Filename, err))
		return
	}
	defer func() { _ = f.Close() }()

	res, err := h.importer.Import(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.String(http.StatusOK, "CSV data imported successfully: %d accepted, %d skipped", res.Accepted, res.Skipped)
}
