package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func createCheckoutSessionHandler(svc CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.CreateSession(c.Request.Context(), currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID, "url": session.URL})
	}
}
