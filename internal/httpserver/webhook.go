package httpserver

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vinylshop/internal/domain"
	"vinylshop/internal/payments"
)

const signatureHeader = "X-Payment-Signature"

// paymentWebhookHandler accepts the raw signed payment-confirmation body.
// Settlement failures return non-2xx so the provider redelivers; duplicate
// deliveries are acknowledged without side effects.
func paymentWebhookHandler(svc SettlementService, secret string, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		if err := payments.VerifySignature(payload, c.GetHeader(signatureHeader), secret, time.Now()); err != nil {
			logger.Printf("webhook: signature rejected: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		ev, err := payments.ParseEvent(payload)
		if err != nil {
			writeError(c, err)
			return
		}

		outcome, err := svc.Process(c.Request.Context(), ev, payload)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			// Critical invariant and infrastructure failures must surface
			// as non-2xx so the event source retries after investigation.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
			return
		}

		status := http.StatusOK
		resp := gin.H{"state": outcome.State}
		if outcome.OrderID != "" {
			resp["orderId"] = outcome.OrderID
		}
		if outcome.Duplicate {
			resp["duplicate"] = true
		}
		if outcome.Ignored {
			resp["ignored"] = true
		}
		c.JSON(status, resp)
	}
}
