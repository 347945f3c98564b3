package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
)

// AssetHandler serves the fact sheets and videos shown beside a scenario.
type AssetHandler struct {
	assetService *service.AssetService
	log          zerolog.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService *service.AssetService, log zerolog.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		log:          log.With().Str("component", "asset_handler").Logger(),
	}
}

// GetAsset godoc
// GET /api/v1/assets/scenarios/:scenario/:name
// Streams a scenario asset. A declared asset whose file is gone answers 404
// with a warning instead of failing the exam.
func (h *AssetHandler) GetAsset(c *gin.Context) {
	scenario, err := strconv.Atoi(c.Param("scenario"))
	if err != nil || scenario < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	file, err := h.assetService.Resolve(scenario, c.Param("name"))
	if err != nil {
		if errors.Is(err, service.ErrAssetMissing) {
			h.log.Warn().Err(err).Int("scenario", scenario).Msg("Asset file missing")
			response.FailWithWarning(c, http.StatusNotFound, response.ErrAssetMissing, err.Error())
			return
		}
		failFromError(c, err)
		return
	}

	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.File))
	c.File(file.Path)
}
