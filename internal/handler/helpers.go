package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/middleware"
	"imperio/internal/model"
	"imperio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_json", "JSON inválido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_query", "Parâmetros inválidos: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, apierror.WithCode("invalid_input", err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps a service error to its status and Portuguese message.
// Anything outside the domain taxonomy is logged and answered with a
// generic 500.
func respondError(c *gin.Context, err error) {
	status, code, msg, ok := apierror.Describe(err)
	if !ok {
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("request failed")
	}
	c.JSON(status, apierror.WithCode(code, msg))
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_id", "ID inválido"))
		return uuid.Nil, false
	}
	return id, true
}

func paramInt(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_id", "Número inválido"))
		return 0, false
	}
	return n, true
}

func operatorFrom(c *gin.Context) service.Operator {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Operator{}
	}
	return service.Operator{ID: claims.OperatorID, Name: claims.Name}
}

func paymentMethod(s string) (model.PaymentMethod, error) {
	m, ok := model.ParsePaymentMethod(s)
	if !ok {
		return "", fmt.Errorf("%w: forma de pagamento %q desconhecida", apierror.ErrInvalidInput, s)
	}
	return m, nil
}

func cartItems(items []dto.CartItemRequest) []service.CartItem {
	out := make([]service.CartItem, 0, len(items))
	for _, it := range items {
		// product_id is validated as a uuid by the request tags
		out = append(out, service.CartItem{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity})
	}
	return out
}
