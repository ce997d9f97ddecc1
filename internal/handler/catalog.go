package handler

import (
	"net/http"

	"imperio/internal/dto"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct{ catalog service.CatalogService }

func NewCatalogHandler(catalog service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Products godoc
// @Summary Lista produtos (available=true filtra os disponíveis)
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Param available query bool false "Somente disponíveis"
// @Success 200 {array} dto.ProductResponse
// @Router /v1/catalog/products [get]
func (h *CatalogHandler) Products(c *gin.Context) {
	resp, err := h.catalog.Products(c.Request.Context(), c.Query("available") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Categories godoc
// @Summary Lista categorias
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CategoryResponse
// @Router /v1/catalog/categories [get]
func (h *CatalogHandler) Categories(c *gin.Context) {
	resp, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Zones godoc
// @Summary Lista bairros atendidos e taxas
// @Tags catalogo
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.ZoneResponse
// @Router /v1/catalog/zones [get]
func (h *CatalogHandler) Zones(c *gin.Context) {
	resp, err := h.catalog.Zones(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdatePrice godoc
// @Summary Atualiza preço, promoção e disponibilidade de um produto
// @Tags catalogo
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do produto"
// @Param body body dto.UpdatePriceRequest true "Novo preço"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/catalog/products/{id}/price [put]
func (h *CatalogHandler) UpdatePrice(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.catalog.UpdatePrice(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
