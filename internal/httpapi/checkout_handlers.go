package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/foodstore/internal/domain"
	"github.com/vladislavdragonenkov/foodstore/internal/service/checkout"
)

func (s *Server) clientToken(c *gin.Context) {
	token, err := s.checkout.ClientToken(c.Request.Context())
	if err != nil {
		respondError(c, err, "Payment gateway is unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"clientToken": token,
	})
}

func (s *Server) submitPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("body", "Invalid payment payload"), "Error in payment")
		return
	}

	buyer := userID(c)
	s.withIdempotency(c, "braintree.payment", buyer, req, func() (int, any) {
		order, err := s.checkout.SubmitPayment(c.Request.Context(), checkout.PaymentRequest{
			Nonce:   req.Nonce,
			BuyerID: buyer,
			Cart:    req.toCart(),
		})
		if err != nil {
			_ = c.Error(err)
			status, body := errorBody(err, "Payment failed")
			return status, body
		}
		return http.StatusOK, gin.H{
			"success": true,
			"ok":      true,
			"message": "Payment completed, order placed",
			"order":   toOrderResponse(order),
		}
	})
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.checkout.ListByBuyer(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err, "Error while getting orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  toOrdersResponse(orders),
	})
}
