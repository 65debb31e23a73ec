// controller/verification_controller.go
package controller

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"domaintrust/config"
	"domaintrust/utils"
)

type VerificationController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Verifier *utils.Verifier
	Resolver *utils.WhoisResolver
	Prober   *utils.SMTPProber
	Gmail    *utils.GmailClient
}

func NewVerificationController(db *gorm.DB, logger *log.Logger) *VerificationController {
	cfg := config.AppConfig.Verification

	registry := utils.NewRegistry(db, logger)
	resolver := utils.NewWhoisResolver(cfg.WhoisTimeout, logger)
	prober := utils.NewSMTPProber(cfg.SMTPProbePort, cfg.SMTPProbeTimeout, "verify.domaintrust.local", logger)
	gmail := utils.NewGmailClient(config.AppConfig.Google, logger)

	verifier := utils.NewVerifier(registry, resolver, prober, gmail, utils.VerifierConfig{
		MinDomainAgeDays: cfg.MinDomainAgeDays,
		MinAccountAge:    time.Duration(cfg.MinAccountAgeDays * 24 * float64(time.Hour)),
		ProviderDomains:  cfg.ProviderDomains,
	}, logger)

	return &VerificationController{
		DB:       db,
		Logger:   logger,
		Verifier: verifier,
		Resolver: resolver,
		Prober:   prober,
		Gmail:    gmail,
	}
}

type verifyRequest struct {
	Email             string `json:"email" validate:"required"`
	AuthorizationCode string `json:"authorization_code"`
}

// VerifyEmail runs the full trust pipeline for one address. Policy
// outcomes (passed/failed) return 200; infrastructure errors return
// 502 so callers can tell "this domain is bad" from "we couldn't
// tell".
func (vc *VerificationController) VerifyEmail(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request format", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	// c.Context() is cancelled on client disconnect, which aborts any
	// in-flight network stage.
	verdict := vc.Verifier.Verify(c.Context(), req.Email, req.AuthorizationCode)

	status := fiber.StatusOK
	if verdict.Status == utils.StatusError {
		status = fiber.StatusBadGateway
	}
	vc.Logger.Printf("Verification of %s: %s %s", req.Email, verdict.Status, verdict.Reason)
	return c.Status(status).JSON(verdict)
}

// VerifyDomain checks registration existence and reachability for a
// bare domain, without the list or provider stages.
func (vc *VerificationController) VerifyDomain(c *fiber.Ctx) error {
	domain := utils.NormalizeValue(c.Query("domain"))
	if domain == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Domain is required", nil)
	}
	if !utils.IsValidFQDN(domain) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid domain format", nil)
	}

	existence, err := vc.Resolver.Resolve(c.Context(), domain)
	if err != nil {
		vc.Logger.Printf("WHOIS lookup failed for %s: %v", domain, err)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Registration lookup unavailable", err)
	}

	reachable := false
	if existence.Eligible(config.AppConfig.Verification.MinDomainAgeDays) {
		reachable = vc.Prober.Probe(c.Context(), domain)
	}

	return c.JSON(fiber.Map{
		"domain":    domain,
		"existence": existence,
		"reachable": reachable,
	})
}

type accountAgeRequest struct {
	AuthorizationCode string `json:"authorization_code" validate:"required"`
}

// VerifyAccountAge reports the age of the authorized mailbox account
// in days, derived from its oldest message.
func (vc *VerificationController) VerifyAccountAge(c *fiber.Ctx) error {
	var req accountAgeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request format", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	earliest, err := vc.Gmail.EarliestMessageDate(c.Context(), req.AuthorizationCode)
	if err != nil {
		if errors.Is(err, utils.ErrAuthExchangeFailed) {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization code exchange failed", err)
		}
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Mailbox provider unavailable", err)
	}
	if earliest == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No messages found in mailbox", nil)
	}

	ageInDays := math.Floor(time.Since(*earliest).Hours() / 24)
	return c.JSON(fiber.Map{
		"account_age_in_days": ageInDays,
		"earliest_message_at": earliest,
	})
}

// GoogleAuthURL returns the consent URL a client must visit to obtain
// the authorization code required for provider domains.
func (vc *VerificationController) GoogleAuthURL(c *fiber.Ctx) error {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate state token", err)
	}

	return c.JSON(fiber.Map{
		"auth_url": vc.Gmail.AuthURL(hex.EncodeToString(buf)),
	})
}
