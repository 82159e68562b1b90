package main

import (
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Zarinpal v4 result codes used by the mock.
const (
	CodeOK              = 100
	CodeVerified        = 101
	CodeValidation      = -9
	CodeAmountMismatch  = -50
	CodeSessionNotPaid  = -51
	CodeUnknownMerchant = -11
)

type PaymentRequest struct {
	MerchantID  string            `json:"merchant_id" binding:"required"`
	Amount      int64             `json:"amount" binding:"required,gt=0"`
	CallbackURL string            `json:"callback_url" binding:"required,url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type VerifyRequest struct {
	MerchantID string `json:"merchant_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Authority  string `json:"authority" binding:"required"`
}

type payment struct {
	amount      int64
	callbackURL string
	paid        bool
	verified    bool
	refID       int64
	createdAt   time.Time
}

// MockGateway mimics the Zarinpal payment flow: request, StartPay redirect, verify.
type MockGateway struct {
	mu          sync.Mutex
	successRate float64
	merchantID  string
	payments    map[string]*payment
	nextRef     int64
	rng         *rand.Rand
}

// NewMockGateway accepts any merchant id when merchantID is empty.
func NewMockGateway(successRate float64, merchantID string) *MockGateway {
	return &MockGateway{
		successRate: successRate,
		merchantID:  merchantID,
		payments:    make(map[string]*payment),
		nextRef:     1000,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func success(data gin.H) gin.H {
	return gin.H{"data": data, "errors": []any{}}
}

func failure(code int, message string) gin.H {
	return gin.H{"data": []any{}, "errors": gin.H{"code": code, "message": message}}
}

func (m *MockGateway) merchantOK(id string) bool {
	return m.merchantID == "" || m.merchantID == id
}

// Request opens a payment session and issues an authority.
func (m *MockGateway) Request(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(CodeValidation, err.Error()))
		return
	}
	if !m.merchantOK(req.MerchantID) {
		c.JSON(http.StatusUnauthorized, failure(CodeUnknownMerchant, "merchant is not active"))
		return
	}

	authority := "A" + uuid.New().String()
	m.mu.Lock()
	m.payments[authority] = &payment{amount: req.Amount, callbackURL: req.CallbackURL, createdAt: time.Now()}
	m.mu.Unlock()

	log.Info().
		Str("authority", authority).
		Int64("amount", req.Amount).
		Str("description", req.Description).
		Msg("payment requested")

	c.JSON(http.StatusOK, success(gin.H{
		"code":      CodeOK,
		"message":   "Success",
		"authority": authority,
		"fee_type":  "Merchant",
		"fee":       0,
	}))
}

// StartPay plays the customer's bank page and sends the browser back to the merchant.
func (m *MockGateway) StartPay(c *gin.Context) {
	authority := c.Param("authority")

	m.mu.Lock()
	p, ok := m.payments[authority]
	status := "NOK"
	if ok && !p.verified && m.rng.Float64() < m.successRate {
		p.paid = true
		status = "OK"
	}
	m.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, failure(CodeSessionNotPaid, "unknown authority"))
		return
	}

	u, err := url.Parse(p.callbackURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, failure(CodeValidation, "bad callback url"))
		return
	}
	q := u.Query()
	q.Set("Authority", authority)
	q.Set("Status", status)
	u.RawQuery = q.Encode()

	log.Info().Str("authority", authority).Str("status", status).Msg("redirecting to merchant")
	c.Redirect(http.StatusFound, u.String())
}

// Verify confirms a paid session once; repeats answer 101 with the same ref id.
func (m *MockGateway) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(CodeValidation, err.Error()))
		return
	}
	if !m.merchantOK(req.MerchantID) {
		c.JSON(http.StatusUnauthorized, failure(CodeUnknownMerchant, "merchant is not active"))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[req.Authority]
	switch {
	case !ok || !p.paid:
		log.Warn().Str("authority", req.Authority).Msg("verify on unpaid session")
		c.JSON(http.StatusOK, failure(CodeSessionNotPaid, "session is not paid"))
		return
	case p.amount != req.Amount:
		log.Warn().Str("authority", req.Authority).Int64("want", p.amount).Int64("got", req.Amount).Msg("amount mismatch")
		c.JSON(http.StatusOK, failure(CodeAmountMismatch, "amount mismatch"))
		return
	}

	code := CodeVerified
	if !p.verified {
		m.nextRef++
		p.refID = m.nextRef
		p.verified = true
		code = CodeOK
	}
	log.Info().Str("authority", req.Authority).Int64("ref_id", p.refID).Int("code", code).Msg("payment verified")

	c.JSON(http.StatusOK, success(gin.H{
		"code":     code,
		"message":  "Verified",
		"ref_id":   p.refID,
		"card_pan": "502229******5995",
		"fee_type": "Merchant",
		"fee":      0,
	}))
}

// UpdateConfig changes the success rate at runtime.
func (m *MockGateway) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate *float64 `json:"success_rate"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	m.mu.Lock()
	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		m.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("updated success rate")
	}
	rate := m.successRate
	m.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success_rate": rate})
}

func (m *MockGateway) HealthCheck(c *gin.Context) {
	m.mu.Lock()
	n := len(m.payments)
	m.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"success_rate": m.successRate,
		"sessions":     n,
	})
}

// SetupRouter configures all routes
func SetupRouter(gw *MockGateway) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	pg := router.Group("/pg")
	{
		pg.POST("/v4/payment/request.json", gw.Request)
		pg.POST("/v4/payment/verify.json", gw.Verify)
		pg.GET("/StartPay/:authority", gw.StartPay)
	}
	router.PUT("/config", gw.UpdateConfig)
	router.GET("/health", gw.HealthCheck)

	return router
}
