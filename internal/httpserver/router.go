package httpserver

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"vinylshop/internal/domain"
	"vinylshop/internal/payments"
	cartsvc "vinylshop/internal/service/cart"
	"vinylshop/internal/service/settlement"
)

// CartService is the cart engine surface the handlers need.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, recordID string, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error)
	MergeGuestCart(ctx context.Context, userID string, items []cartsvc.GuestItem) (*domain.Cart, error)
}

type CheckoutService interface {
	CreateSession(ctx context.Context, userID string) (*payments.Session, error)
}

type SettlementService interface {
	Process(ctx context.Context, ev *payments.Event, payload []byte) (settlement.Outcome, error)
}

type Deps struct {
	CartSvc       CartService
	CheckoutSvc   CheckoutService
	SettlementSvc SettlementService
	WebhookSecret string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api", userMiddleware())
	{
		api.GET("/cart", getCartHandler(deps.CartSvc))
		api.POST("/cart/items", addCartItemHandler(deps.CartSvc))
		api.PATCH("/cart/items/:itemID", updateCartItemHandler(deps.CartSvc))
		api.DELETE("/cart/items/:itemID", removeCartItemHandler(deps.CartSvc))
		api.POST("/cart/merge", mergeGuestCartHandler(deps.CartSvc))
		api.POST("/checkout/session", createCheckoutSessionHandler(deps.CheckoutSvc))
	}

	router.POST("/webhooks/payment", paymentWebhookHandler(deps.SettlementSvc, deps.WebhookSecret, logger))

	return router
}

const userIDKey = "userID"

// userMiddleware extracts the authenticated user resolved by the fronting
// session layer. Session and credential mechanics live outside this service.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
