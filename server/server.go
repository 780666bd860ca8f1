package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking/payment"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
)

const maxBodyBytes = 64 << 10

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	RatePerMinute   int           `split_words:"true" default:"30"`
	RateBurst       int           `split_words:"true" default:"10"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	PublicURL       string        `split_words:"true"`
}

// ReportJobPath receives report jobs pushed back by the job queue.
const ReportJobPath = "/v1/jobs/report"

// Bot is the dialogue surface the HTTP layer drives.
type Bot interface {
	HandleMessage(ctx context.Context, userID, text string) (contract.Response, error)
	HandlePaymentApproved(ctx context.Context, userID, bookingID string) error
}

// WebhookParser verifies a payment webhook and extracts the approval.
type WebhookParser func(payload []byte, signature string) (payment.Approval, error)

type JobVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

type ReportRunner interface {
	Run(ctx context.Context, job contract.ReportJob) (string, error)
}

type Server struct {
	bot          Bot
	parseWebhook WebhookParser
	reports      ReportRunner
	jobs         JobVerifier
	jobURL       string
	limiter      *userLimiter
	cfg          Config
	engine       *gin.Engine
}

type Option func(*Server)

func WithPaymentWebhook(parse WebhookParser) Option {
	return func(s *Server) { s.parseWebhook = parse }
}

// WithReportJobs enables the push endpoint for report jobs. Deliveries must
// carry a signature the verifier accepts for the public job URL.
func WithReportJobs(runner ReportRunner, verifier JobVerifier) Option {
	return func(s *Server) {
		s.reports = runner
		s.jobs = verifier
	}
}

func New(bot Bot, cfg Config, opts ...Option) (*Server, error) {
	if bot == nil {
		return nil, errors.New("bot is required")
	}
	s := &Server{
		bot:     bot,
		cfg:     cfg,
		limiter: newUserLimiter(cfg.RatePerMinute, cfg.RateBurst),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.reports != nil {
		base := strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
		if base == "" {
			return nil, errors.New("public url is required for report jobs")
		}
		s.jobURL = base + ReportJobPath
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/healthz", s.health)
	v1 := engine.Group("/v1")
	v1.POST("/messages", s.postMessage)
	if s.parseWebhook != nil {
		v1.POST("/webhooks/stripe", s.postStripeWebhook)
	}
	if s.reports != nil {
		engine.POST(ReportJobPath, s.postReportJob)
	}
	s.engine = engine
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// JobURL is the destination report jobs must be published to.
func (s *Server) JobURL() string {
	return s.jobURL
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info().Msg("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Next()
		log.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) postMessage(c *gin.Context) {
	var msg contract.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	userID := strings.TrimSpace(msg.UserID)
	if userID != "" && !s.limiter.allow(userID) {
		log.Warn().Str("user_id", userID).Msg("Rate limit exceeded")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
		return
	}

	resp, err := s.bot.HandleMessage(c.Request.Context(), msg.UserID, msg.Text)
	switch {
	case errors.Is(err, contract.ErrInvalidUser), errors.Is(err, contract.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to handle message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) postStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	approval, err := s.parseWebhook(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn().Err(err).Msg("Rejected payment webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, payment.ErrIgnoredEvent):
		log.Debug().Err(err).Msg("Payment webhook ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to parse payment webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if err := s.bot.HandlePaymentApproved(c.Request.Context(), approval.UserID, approval.BookingID); err != nil {
		log.Error().Err(err).Str("booking_id", approval.BookingID).Msg("Failed to apply payment approval")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approval not applied"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) postReportJob(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := s.jobs.Verify(c.GetHeader("Upstash-Signature"), body, s.jobURL); err != nil {
		log.Warn().Err(err).Msg("Rejected report job")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var job contract.ReportJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job"})
		return
	}
	path, err := s.reports.Run(c.Request.Context(), job)
	if err != nil {
		log.Error().Err(err).Msg("Report job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}
