package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "domaintrust/controllers"
	"domaintrust/middleware"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	verifyLogger := log.New(os.Stdout, "VERIFY: ", log.Ldate|log.Ltime|log.Lshortfile)
	domainLogger := log.New(os.Stdout, "DOMAIN: ", log.Ldate|log.Ltime|log.Lshortfile)

	verificationController := controller.NewVerificationController(db, verifyLogger)
	domainController := controller.NewDomainController(db, domainLogger)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Google consent URL for obtaining an authorization code
	app.Get("/auth/google", verificationController.GoogleAuthURL)

	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Verification routes, rate limited since each request may fan out
	// into WHOIS/DNS/SMTP traffic
	verify := api.Group("/verify", middleware.VerifyRateLimiter())
	verify.Post("/", verificationController.VerifyEmail)
	verify.Get("/domain", verificationController.VerifyDomain)
	verify.Post("/account-age", verificationController.VerifyAccountAge)

	// Registry admin routes (protected)
	domains := api.Group("/domains", middleware.Protected())
	domains.Post("/trusted", domainController.AddTrusted)
	domains.Post("/blacklist", domainController.AddBlacklisted)
	domains.Get("/", domainController.ListDomains)
	domains.Put("/:id", domainController.UpdateDomain)
	domains.Delete("/:id", domainController.DeleteDomain)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("Routes initialized successfully")
}
