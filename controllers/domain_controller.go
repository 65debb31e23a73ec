// controller/domain_controller.go
package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"domaintrust/utils"
)

type DomainController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Registry *utils.Registry
}

func NewDomainController(db *gorm.DB, logger *log.Logger) *DomainController {
	return &DomainController{
		DB:       db,
		Logger:   logger,
		Registry: utils.NewRegistry(db, logger),
	}
}

type addEntryRequest struct {
	Value string `json:"value" validate:"required"`
}

// AddTrusted adds an email or domain to the allow list.
func (dc *DomainController) AddTrusted(c *fiber.Ctx) error {
	return dc.addEntry(c, utils.KindTrusted)
}

// AddBlacklisted adds a domain to the deny list.
func (dc *DomainController) AddBlacklisted(c *fiber.Ctx) error {
	return dc.addEntry(c, utils.KindBlacklisted)
}

func (dc *DomainController) addEntry(c *fiber.Ctx, kind utils.EntryKind) error {
	var req addEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request format", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	entry, err := dc.Registry.Add(req.Value, kind)
	if err != nil {
		return dc.registryError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(entry))
}

// ListDomains returns every allow/deny list entry.
func (dc *DomainController) ListDomains(c *fiber.Ctx) error {
	entries, err := dc.Registry.ListAll()
	if err != nil {
		return dc.registryError(c, err)
	}
	return c.JSON(utils.SuccessResponse(entries))
}

type updateEntryRequest struct {
	Value string `json:"value" validate:"required"`
}

// UpdateDomain replaces the value of an existing entry.
func (dc *DomainController) UpdateDomain(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))

	var req updateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request format", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	entry, err := dc.Registry.Update(id, req.Value)
	if err != nil {
		return dc.registryError(c, err)
	}

	return c.JSON(utils.SuccessResponse(entry))
}

// DeleteDomain removes an entry by id.
func (dc *DomainController) DeleteDomain(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))

	if err := dc.Registry.Remove(id); err != nil {
		return dc.registryError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Entry deleted successfully"})
}

func (dc *DomainController) registryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, utils.ErrInvalidFormat):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid value format", err)
	case errors.Is(err, utils.ErrAlreadyExists):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Entry already exists", err)
	case errors.Is(err, utils.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Entry not found", err)
	default:
		dc.Logger.Printf("Registry operation failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Registry operation failed", nil)
	}
}
