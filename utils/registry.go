package utils

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"domaintrust/models"
)

type EntryKind string

const (
	KindTrusted     EntryKind = "trusted"
	KindBlacklisted EntryKind = "blacklisted"
)

var (
	ErrAlreadyExists = errors.New("entry already exists")
	ErrNotFound      = errors.New("entry not found")
	ErrInvalidFormat = errors.New("invalid format")
)

// Registry maintains the trusted/blacklisted domain entries. All
// matching is anchored, exact equality on the normalized value —
// never substring or regex matching, so blacklisting gmail.com does
// not catch notgmail.com.
type Registry struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewRegistry(db *gorm.DB, logger *log.Logger) *Registry {
	return &Registry{
		DB:     db,
		Logger: logger,
	}
}

// IsTrusted reports whether value (a domain or full email) has an
// explicit allow entry. Case-insensitive exact match.
func (r *Registry) IsTrusted(value string) (bool, error) {
	return r.exists(NormalizeValue(value), KindTrusted)
}

// IsBlacklisted reports whether value has an explicit deny entry.
// Case-insensitive exact match.
func (r *Registry) IsBlacklisted(value string) (bool, error) {
	return r.exists(NormalizeValue(value), KindBlacklisted)
}

func (r *Registry) exists(value string, kind EntryKind) (bool, error) {
	var count int64
	q := r.DB.Model(&models.DomainEntry{}).Where("value = ?", value)
	if kind == KindTrusted {
		q = q.Where("trusted = ?", true)
	} else {
		q = q.Where("blacklisted = ?", true)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("registry lookup failed: %w", err)
	}
	return count > 0, nil
}

// Add creates a new entry of the given kind. Trusted entries accept a
// full email address or a bare domain; blacklist entries must be a
// fully qualified domain.
func (r *Registry) Add(value string, kind EntryKind) (*models.DomainEntry, error) {
	value = NormalizeValue(value)
	if err := validateEntryValue(value, kind); err != nil {
		return nil, err
	}

	exists, err := r.exists(value, kind)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	entry := models.DomainEntry{
		Value:       value,
		Trusted:     kind == KindTrusted,
		Blacklisted: kind == KindBlacklisted,
	}
	if err := r.DB.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}

	r.Logger.Printf("Added %s entry: %s", kind, value)
	return &entry, nil
}

// Update replaces the value of an existing entry, validated against
// the entry's kind.
func (r *Registry) Update(id uint, newValue string) (*models.DomainEntry, error) {
	var entry models.DomainEntry
	if err := r.DB.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("registry lookup failed: %w", err)
	}

	newValue = NormalizeValue(newValue)
	kind := KindTrusted
	if entry.Blacklisted {
		kind = KindBlacklisted
	}
	if err := validateEntryValue(newValue, kind); err != nil {
		return nil, err
	}

	entry.Value = newValue
	if err := r.DB.Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	r.Logger.Printf("Updated entry %d to %s", id, newValue)
	return &entry, nil
}

// Remove deletes an entry by id.
func (r *Registry) Remove(id uint) error {
	res := r.DB.Delete(&models.DomainEntry{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	r.Logger.Printf("Removed entry %d", id)
	return nil
}

// ListAll returns every stored entry.
func (r *Registry) ListAll() ([]models.DomainEntry, error) {
	var entries []models.DomainEntry
	if err := r.DB.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

func validateEntryValue(value string, kind EntryKind) error {
	switch kind {
	case KindTrusted:
		if !IsValidEmail(value) && !IsValidFQDN(value) {
			return fmt.Errorf("%w: %q is not a valid email or domain", ErrInvalidFormat, value)
		}
	case KindBlacklisted:
		if !IsValidFQDN(value) {
			return fmt.Errorf("%w: %q is not a fully qualified domain", ErrInvalidFormat, value)
		}
	default:
		return fmt.Errorf("%w: unknown entry kind %q", ErrInvalidFormat, kind)
	}
	return nil
}
