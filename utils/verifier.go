package utils

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/badoux/checkmail"
)

type VerdictStatus string

const (
	StatusPassed VerdictStatus = "passed"
	StatusFailed VerdictStatus = "failed"
	StatusError  VerdictStatus = "error"
)

// Machine-stable reason codes. Failed verdicts carry a policy reason;
// error verdicts carry an infrastructure reason and mean the domain's
// real status is unknown.
const (
	ReasonInvalidFormat         = "invalid_format"
	ReasonBlacklisted           = "blacklisted"
	ReasonDomainDoesNotExist    = "domain_does_not_exist"
	ReasonMailServerUnreachable = "mail_server_unreachable"
	ReasonAccountTooNew         = "account_too_new"
	ReasonAuthorizationRequired = "authorization_required"
	ReasonLookupUnavailable     = "lookup_unavailable"
	ReasonAuthExchangeFailed    = "auth_exchange_failed"
	ReasonProviderUnavailable   = "provider_unavailable"
	ReasonRegistryUnavailable   = "registry_unavailable"
)

type Verdict struct {
	Status VerdictStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

func failed(reason string) *Verdict {
	return &Verdict{Status: StatusFailed, Reason: reason}
}

func errored(reason string) *Verdict {
	return &Verdict{Status: StatusError, Reason: reason}
}

// TrustChecker is the registry surface the pipeline consumes.
type TrustChecker interface {
	IsTrusted(value string) (bool, error)
	IsBlacklisted(value string) (bool, error)
}

// ExistenceResolver determines whether a domain is registered and
// mail-capable.
type ExistenceResolver interface {
	Resolve(ctx context.Context, domain string) (*DomainExistence, error)
}

// ReachabilityProber confirms the domain's mail server is live.
type ReachabilityProber interface {
	Probe(ctx context.Context, domain string) bool
}

// AccountAgeChecker estimates mailbox account age for delegated
// identity providers.
type AccountAgeChecker interface {
	EarliestMessageDate(ctx context.Context, authCode string) (*time.Time, error)
}

// VerifierConfig holds the policy thresholds of the pipeline.
type VerifierConfig struct {
	MinDomainAgeDays float64
	MinAccountAge    time.Duration
	ProviderDomains  []string
}

// Verifier runs the ordered verification pipeline: syntax, denylist,
// allowlist, existence, reachability, provider account age. Cheap
// local checks run before any network I/O, and the registration check
// runs before the live probe so non-existent domains never trigger an
// SMTP handshake.
type Verifier struct {
	Registry TrustChecker
	Resolver ExistenceResolver
	Prober   ReachabilityProber
	Provider AccountAgeChecker
	Config   VerifierConfig
	Logger   *log.Logger
}

func NewVerifier(registry TrustChecker, resolver ExistenceResolver, prober ReachabilityProber, provider AccountAgeChecker, cfg VerifierConfig, logger *log.Logger) *Verifier {
	return &Verifier{
		Registry: registry,
		Resolver: resolver,
		Prober:   prober,
		Provider: provider,
		Config:   cfg,
		Logger:   logger,
	}
}

// Verify runs the full pipeline for one email address. Each stage
// either short-circuits to a terminal verdict or hands off to the
// next; the request context bounds and cancels all network stages.
func (v *Verifier) Verify(ctx context.Context, email, authCode string) *Verdict {
	email = NormalizeValue(email)

	// Stage 0: syntax, before any network call
	if err := checkmail.ValidateFormat(email); err != nil {
		return failed(ReasonInvalidFormat)
	}
	domain := ExtractDomain(email)
	if domain == "" {
		return failed(ReasonInvalidFormat)
	}

	// Stage 1: denylist
	blacklisted, err := v.Registry.IsBlacklisted(domain)
	if err != nil {
		LogError("registry_lookup", err, map[string]interface{}{"domain": domain})
		return errored(ReasonRegistryUnavailable)
	}
	if blacklisted {
		v.Logger.Printf("Rejected %s: domain blacklisted", email)
		return failed(ReasonBlacklisted)
	}

	// Stage 2: allowlist short-circuits the network checks. Entries
	// may hold a full address or a bare domain, so consult both.
	trusted, err := v.isTrusted(email, domain)
	if err != nil {
		LogError("registry_lookup", err, map[string]interface{}{"domain": domain})
		return errored(ReasonRegistryUnavailable)
	}
	if trusted {
		return &Verdict{Status: StatusPassed}
	}

	// Stage 3: registration existence (fail closed on "not found")
	existence, err := v.Resolver.Resolve(ctx, domain)
	if err != nil {
		LogError("whois_lookup", err, map[string]interface{}{"domain": domain})
		return errored(ReasonLookupUnavailable)
	}
	if !existence.Eligible(v.Config.MinDomainAgeDays) {
		v.Logger.Printf("Rejected %s: registered=%t mx=%t", email, existence.Registered, existence.HasMailExchange)
		return failed(ReasonDomainDoesNotExist)
	}

	// Stage 4: live probe
	if !v.Prober.Probe(ctx, domain) {
		v.Logger.Printf("Rejected %s: mail server unreachable", email)
		return failed(ReasonMailServerUnreachable)
	}

	// Stage 5: account age, only for delegated identity providers.
	// Skipping silently when the code is missing would let brand-new
	// accounts through, so its absence is surfaced instead.
	if v.isProviderDomain(domain) {
		if authCode == "" {
			return errored(ReasonAuthorizationRequired)
		}

		earliest, err := v.Provider.EarliestMessageDate(ctx, authCode)
		if err != nil {
			LogError("account_age", err, map[string]interface{}{"domain": domain})
			if errors.Is(err, ErrAuthExchangeFailed) {
				return errored(ReasonAuthExchangeFailed)
			}
			return errored(ReasonProviderUnavailable)
		}

		// No visible messages is non-blocking
		if earliest != nil && time.Since(*earliest) < v.Config.MinAccountAge {
			v.Logger.Printf("Rejected %s: account younger than %s", email, v.Config.MinAccountAge)
			return failed(ReasonAccountTooNew)
		}
	}

	return &Verdict{Status: StatusPassed}
}

func (v *Verifier) isTrusted(email, domain string) (bool, error) {
	trusted, err := v.Registry.IsTrusted(email)
	if err != nil || trusted {
		return trusted, err
	}
	return v.Registry.IsTrusted(domain)
}

func (v *Verifier) isProviderDomain(domain string) bool {
	for _, provider := range v.Config.ProviderDomains {
		if domain == provider {
			return true
		}
	}
	return false
}
