package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
)

// ErrLookupUnavailable means the WHOIS query itself could not complete.
// Distinct from "domain not found": with this error the domain's real
// status is unknown and the caller must not treat it as a rejection.
var ErrLookupUnavailable = errors.New("whois lookup unavailable")

// DomainExistence is the outcome of the registration + MX check.
// Registered and AgeInDays are kept separate so "registered but too
// young" stays distinguishable from "not registered at all".
type DomainExistence struct {
	Registered      bool     `json:"registered"`
	AgeInDays       *float64 `json:"age_in_days,omitempty"`
	HasMailExchange bool     `json:"has_mail_exchange"`
}

// Eligible combines the existence facts with the minimum-age policy.
func (d *DomainExistence) Eligible(minAgeDays float64) bool {
	if !d.Registered || !d.HasMailExchange {
		return false
	}
	if d.AgeInDays != nil && *d.AgeInDays < minAgeDays {
		return false
	}
	return true
}

var creationDateRegex = regexp.MustCompile(`(?i)creation date:\s*(.+)`)

// WHOIS registrars disagree on date formats; try the common ones.
var creationDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
}

// Domain to MX cache
var mxCache = struct {
	sync.RWMutex
	m map[string][]*net.MX
}{m: make(map[string][]*net.MX)}

// WhoisResolver determines whether a domain is registered and
// mail-capable using a WHOIS query plus MX record resolution.
type WhoisResolver struct {
	Timeout time.Duration
	Logger  *log.Logger

	lookup func(domain string) (string, error)
	hasMX  func(ctx context.Context, domain string) bool
}

func NewWhoisResolver(timeout time.Duration, logger *log.Logger) *WhoisResolver {
	client := whois.NewClient()
	client.SetTimeout(timeout)

	return &WhoisResolver{
		Timeout: timeout,
		Logger:  logger,
		lookup: func(domain string) (string, error) {
			return client.Whois(domain)
		},
		hasMX: hasMXRecords,
	}
}

// Resolve queries the WHOIS record and MX records for domain. A WHOIS
// transport failure is a hard error (ErrLookupUnavailable); a DNS
// failure only clears HasMailExchange so transient resolver flakiness
// does not error the whole verification.
func (w *WhoisResolver) Resolve(ctx context.Context, domain string) (*DomainExistence, error) {
	raw, err := w.lookup(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}

	result := &DomainExistence{}
	if !strings.Contains(strings.ToLower(raw), "domain name:") {
		// No registration record: non-existent, skip the MX check.
		return result, nil
	}
	result.Registered = true

	if created := parseCreationDate(raw); created != nil {
		age := time.Since(*created).Hours() / 24
		result.AgeInDays = &age
	}

	result.HasMailExchange = w.hasMX(ctx, domain)
	return result, nil
}

func parseCreationDate(raw string) *time.Time {
	match := creationDateRegex.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}

	value := strings.TrimSpace(match[1])
	for _, layout := range creationDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func hasMXRecords(ctx context.Context, domain string) bool {
	records, err := getMXRecords(ctx, domain)
	if err != nil {
		return false
	}
	return len(records) > 0
}

func getMXRecords(ctx context.Context, domain string) ([]*net.MX, error) {
	// Check cache first
	mxCache.RLock()
	if records, ok := mxCache.m[domain]; ok {
		mxCache.RUnlock()
		return records, nil
	}
	mxCache.RUnlock()

	// Lookup fresh records with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var resolver net.Resolver
	mxRecords, err := resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, err
	}

	// Update cache
	mxCache.Lock()
	mxCache.m[domain] = mxRecords
	mxCache.Unlock()

	return mxRecords, nil
}
