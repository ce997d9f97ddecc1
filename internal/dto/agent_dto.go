package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Tool arguments use the Portuguese field names the conversational agent is
// prompted with.

// AgentItem is one requested item by menu name.
type AgentItem struct {
	Name     string `json:"nome"`
	Quantity int    `json:"quantidade"`
}

// AgentItems accepts either a JSON list of {nome, quantidade} or the legacy
// free-text form "2x Batata Frita, 1x Coca-Cola lata". Past this type the
// rest of the system only ever sees the typed list.
type AgentItems []AgentItem

// Tried in order: "2x Batata", "2xBatata", "2 Batata".
var legacyItemRes = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)\s*[xX×]\s+(.+)$`),
	regexp.MustCompile(`^(\d+)[xX×](\S.*)$`),
	regexp.MustCompile(`^(\d+)\s+(.+)$`),
}

func matchLegacyItem(s string) []string {
	for _, re := range legacyItemRes {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

func (a *AgentItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		items, err := ParseLegacyItems(s)
		if err != nil {
			return err
		}
		*a = items
		return nil
	}

	var raw []struct {
		Name     string `json:"nome"`
		Quantity *int   `json:"quantidade"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AgentItems, 0, len(raw))
	for _, r := range raw {
		qty := 1
		if r.Quantity != nil {
			qty = *r.Quantity
		}
		out = append(out, AgentItem{Name: strings.TrimSpace(r.Name), Quantity: qty})
	}
	*a = out
	return nil
}

// ParseLegacyItems parses "2x A, 1x B; C". An entry without a count means one.
func ParseLegacyItems(s string) (AgentItems, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	var out AgentItems
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if m := matchLegacyItem(f); m != nil {
			qty, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, err
			}
			out = append(out, AgentItem{Name: strings.TrimSpace(m[2]), Quantity: qty})
			continue
		}
		out = append(out, AgentItem{Name: f, Quantity: 1})
	}
	if len(out) == 0 {
		return nil, errors.New("lista de itens vazia")
	}
	return out, nil
}

type CalculateTotalArgs struct {
	Items         AgentItems `json:"itens"`
	Zone          *string    `json:"bairro"`
	PaymentMethod *string    `json:"forma_pagamento"`
}

type DeliveryFeeArgs struct {
	Zone string `json:"bairro"`
}

type CreateOrderArgs struct {
	Phone         string     `json:"telefone"`
	Name          string     `json:"nome"`
	Items         AgentItems `json:"itens"`
	PaymentMethod string     `json:"forma_pagamento"`
	Address       *string    `json:"endereco"`
	Zone          *string    `json:"bairro"`
	Notes         *string    `json:"observacoes"`
}

// ToolResult is the envelope every tool returns. Message is always a
// sentence the agent can relay to the customer.
type ToolResult struct {
	OK      bool        `json:"ok"`
	Message string      `json:"mensagem"`
	Data    interface{} `json:"dados,omitempty"`
}

type TotalBreakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"desconto"`
	PaymentDiscount decimal.Decimal `json:"desconto_pagamento"`
	DeliveryFee     decimal.Decimal `json:"taxa_entrega"`
	Total           decimal.Decimal `json:"total"`
}

type DeliveryFeeResult struct {
	Serves bool            `json:"atende"`
	Zone   string          `json:"bairro"`
	Fee    decimal.Decimal `json:"taxa"`
}

type OrderCreatedResult struct {
	OrderID         int64           `json:"pedido_id"`
	Total           decimal.Decimal `json:"total"`
	EstimatedWindow string          `json:"janela_estimada"`
}
