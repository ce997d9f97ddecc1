package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"imperio/internal/apierror"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
)

type AgentHandler struct{ agent service.AgentService }

func NewAgentHandler(agent service.AgentService) *AgentHandler { return &AgentHandler{agent: agent} }

// Call godoc
// @Summary Executa uma ferramenta do atendente virtual
// @Description Ferramentas: calcular_total_pedido, calcular_taxa_entrega, criar_pedido.
// @Description Falhas de negócio voltam com 200 e ok=false; a mensagem pode ser repassada ao cliente.
// @Tags agente
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Nome da ferramenta"
// @Success 200 {object} dto.ToolResult
// @Failure 404 {object} apierror.APIError
// @Router /v1/agent/tools/{name} [post]
func (h *AgentHandler) Call(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_json", "Corpo da requisição ilegível"))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	res, err := h.agent.Call(c.Request.Context(), c.Param("name"), json.RawMessage(body))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
