// Package gateway is the HTTP adapter over the order-processing core.
// Authentication happens upstream; this layer trusts the identity headers
// set by the edge proxy and maps core failures to HTTP status codes.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/sweetshop/pkg/cart"
	"github.com/example/sweetshop/pkg/catalog"
	"github.com/example/sweetshop/pkg/checkout"
	"github.com/example/sweetshop/pkg/config"
	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/identity"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/orders"
)

const customerKey = "customer"

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	catalog  *catalog.Service
	cart     *cart.Service
	checkout *checkout.Engine
	orders   *orders.Service
}

func NewGateway(cfg *config.Config, logger *zap.Logger,
	catalogSvc *catalog.Service, cartSvc *cart.Service,
	checkoutEngine *checkout.Engine, orderSvc *orders.Service) *Gateway {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		catalog:  catalogSvc,
		cart:     cartSvc,
		checkout: checkoutEngine,
		orders:   orderSvc,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	v1.Use(identityMiddleware())
	{
		products := v1.Group("/products")
		{
			products.GET("", g.searchProducts)
			products.GET("/:id", g.getProduct)
			products.POST("/:id/purchase", g.purchaseProduct)
			products.POST("", adminOnly(), g.createProduct)
			products.PUT("/:id", adminOnly(), g.updateProduct)
			products.DELETE("/:id", adminOnly(), g.deleteProduct)
			products.POST("/:id/restock", adminOnly(), g.restockProduct)
		}

		cartRoutes := v1.Group("/cart")
		{
			cartRoutes.GET("", g.listCart)
			cartRoutes.POST("", g.addToCart)
			cartRoutes.PUT("/:id", g.updateCartItem)
			cartRoutes.DELETE("/:id", g.removeCartItem)
			cartRoutes.DELETE("", g.clearCart)
		}

		orderRoutes := v1.Group("/orders")
		{
			orderRoutes.POST("/checkout", g.checkoutCart)
			orderRoutes.GET("", g.listOrders)
			orderRoutes.GET("/:id", g.getOrder)
		}

		admin := v1.Group("/admin", adminOnly())
		{
			admin.GET("/orders", g.listAllOrders)
			admin.PUT("/orders/:id/status", g.setOrderStatus)
			admin.PUT("/orders/:id/tracking", g.setOrderTracking)
		}
	}
}

func (g *Gateway) Router() *gin.Engine {
	return g.router
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	g.logger.Info("Gateway starting", zap.String("address", addr))
	return g.router.Run(addr)
}

// --- products ---

func (g *Gateway) searchProducts(c *gin.Context) {
	filter := catalog.Filter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
	}
	if raw := c.Query("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_price"})
			return
		}
		filter.MinPrice = &v
	}
	if raw := c.Query("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_price"})
			return
		}
		filter.MaxPrice = &v
	}

	products, err := g.catalog.Search(c.Request.Context(), filter)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

func (g *Gateway) getProduct(c *gin.Context) {
	product, err := g.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) createProduct(c *gin.Context) {
	var product models.Product
	if err := c.BindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.catalog.Create(c.Request.Context(), &product); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var details models.Product
	if err := c.BindJSON(&details); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := g.catalog.Update(c.Request.Context(), c.Param("id"), &details)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (g *Gateway) purchaseProduct(c *gin.Context) {
	var req quantityRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := g.catalog.Purchase(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) restockProduct(c *gin.Context) {
	var req quantityRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := g.catalog.Restock(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// --- cart ---

func (g *Gateway) listCart(c *gin.Context) {
	lines, err := g.cart.List(c.Request.Context(), customerFrom(c))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": lines, "total": len(lines)})
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	line, err := g.cart.Add(c.Request.Context(), customerFrom(c), req.ProductID, req.Quantity)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.cart.UpdateQuantity(c.Request.Context(), customerFrom(c), c.Param("id"), req.Quantity); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	if err := g.cart.Remove(c.Request.Context(), customerFrom(c), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (g *Gateway) clearCart(c *gin.Context) {
	if err := g.cart.Clear(c.Request.Context(), customerFrom(c)); err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- orders ---

type checkoutRequest struct {
	PaymentMode     string `json:"payment_mode"`
	PaymentDetails  string `json:"payment_details"`
	ShippingAddress string `json:"shipping_address"`
	CustomerNotes   string `json:"customer_notes"`
}

func (g *Gateway) checkoutCart(c *gin.Context) {
	var payment *checkout.PaymentDetails
	if c.Request.ContentLength > 0 {
		var req checkoutRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payment = &checkout.PaymentDetails{
			Instrument:      req.PaymentDetails,
			ShippingAddress: req.ShippingAddress,
			CustomerNotes:   req.CustomerNotes,
		}
		if req.PaymentMode != "" {
			mode, err := models.ParsePaymentMode(req.PaymentMode)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			payment.Mode = mode
		}
	}

	order, err := g.checkout.Checkout(c.Request.Context(), customerFrom(c), payment)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (g *Gateway) listOrders(c *gin.Context) {
	orderList, err := g.orders.ListForCustomer(c.Request.Context(), customerFrom(c).ID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orderList, "total": len(orderList)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.orders.GetByID(c.Request.Context(), customerFrom(c), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) listAllOrders(c *gin.Context) {
	orderList, err := g.orders.ListAll(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orderList, "total": len(orderList)})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (g *Gateway) setOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := g.orders.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

func (g *Gateway) setOrderTracking(c *gin.Context) {
	var req trackingRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := g.orders.SetTracking(c.Request.Context(), c.Param("id"), req.TrackingNumber)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- middleware & errors ---

// identityMiddleware trusts the headers stamped by the upstream auth
// proxy. The core never validates credentials itself.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		c.Set(customerKey, identity.Customer{
			ID:    userID,
			Admin: c.GetHeader("X-User-Role") == "admin",
		})
		c.Next()
	}
}

func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !customerFrom(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func customerFrom(c *gin.Context) identity.Customer {
	if v, ok := c.Get(customerKey); ok {
		if customer, ok := v.(identity.Customer); ok {
			return customer
		}
	}
	return identity.Customer{}
}

func (g *Gateway) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrEmptyCart):
		status = http.StatusBadRequest
	case errs.IsInsufficientStock(err):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		g.logger.Error("Request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
