package utils

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRegistry struct {
	trusted     map[string]bool
	blacklisted map[string]bool
	err         error
	lookups     int
}

func (s *stubRegistry) IsTrusted(value string) (bool, error) {
	s.lookups++
	if s.err != nil {
		return false, s.err
	}
	return s.trusted[value], nil
}

func (s *stubRegistry) IsBlacklisted(value string) (bool, error) {
	s.lookups++
	if s.err != nil {
		return false, s.err
	}
	return s.blacklisted[value], nil
}

type stubResolver struct {
	result *DomainExistence
	err    error
	calls  int
}

func (s *stubResolver) Resolve(ctx context.Context, domain string) (*DomainExistence, error) {
	s.calls++
	return s.result, s.err
}

type stubProber struct {
	reachable bool
	calls     int
}

func (s *stubProber) Probe(ctx context.Context, domain string) bool {
	s.calls++
	return s.reachable
}

type stubProvider struct {
	earliest *time.Time
	err      error
	calls    int
}

func (s *stubProvider) EarliestMessageDate(ctx context.Context, authCode string) (*time.Time, error) {
	s.calls++
	return s.earliest, s.err
}

type pipeline struct {
	verifier *Verifier
	registry *stubRegistry
	resolver *stubResolver
	prober   *stubProber
	provider *stubProvider
}

func newPipeline() *pipeline {
	registry := &stubRegistry{
		trusted:     map[string]bool{},
		blacklisted: map[string]bool{},
	}
	resolver := &stubResolver{
		result: &DomainExistence{
			Registered:      true,
			AgeInDays:       Pointer(365.0),
			HasMailExchange: true,
		},
	}
	prober := &stubProber{reachable: true}
	provider := &stubProvider{}

	cfg := VerifierConfig{
		MinDomainAgeDays: 7,
		MinAccountAge:    24 * time.Hour,
		ProviderDomains:  []string{"gmail.com"},
	}

	return &pipeline{
		verifier: NewVerifier(registry, resolver, prober, provider, cfg, log.New(io.Discard, "", 0)),
		registry: registry,
		resolver: resolver,
		prober:   prober,
		provider: provider,
	}
}

func TestVerifyInvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"plainaddress",
		"user@",
		"@no-local-part.example",
	}

	for _, email := range tests {
		p := newPipeline()
		verdict := p.verifier.Verify(context.Background(), email, "")

		assert.Equal(t, StatusFailed, verdict.Status, "email %q", email)
		assert.Equal(t, ReasonInvalidFormat, verdict.Reason, "email %q", email)
		assert.Zero(t, p.registry.lookups, "no registry lookup for %q", email)
		assert.Zero(t, p.resolver.calls, "no network call for %q", email)
		assert.Zero(t, p.prober.calls, "no probe for %q", email)
	}
}

func TestVerifyBlacklistedShortCircuits(t *testing.T) {
	p := newPipeline()
	p.registry.blacklisted["blacklisted.example"] = true

	verdict := p.verifier.Verify(context.Background(), "user@blacklisted.example", "")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonBlacklisted, verdict.Reason)
	assert.Zero(t, p.resolver.calls, "existence must not run for blacklisted domains")
	assert.Zero(t, p.prober.calls, "probe must not run for blacklisted domains")
}

func TestVerifyBlacklistMatchIsAnchored(t *testing.T) {
	// Blacklisting gmail.com must not catch notgmail.com
	p := newPipeline()
	p.registry.blacklisted["gmail.com"] = true

	verdict := p.verifier.Verify(context.Background(), "user@notgmail.com", "")

	assert.Equal(t, StatusPassed, verdict.Status)
}

func TestVerifyTrustedDomainShortCircuits(t *testing.T) {
	p := newPipeline()
	p.registry.trusted["trusted.example"] = true
	// Even an unreachable, unregistered domain passes when allowlisted
	p.resolver.result = &DomainExistence{}
	p.prober.reachable = false

	verdict := p.verifier.Verify(context.Background(), "User@Trusted.Example", "")

	assert.Equal(t, StatusPassed, verdict.Status)
	assert.Empty(t, verdict.Reason)
	assert.Zero(t, p.resolver.calls)
	assert.Zero(t, p.prober.calls)
}

func TestVerifyTrustedFullAddress(t *testing.T) {
	p := newPipeline()
	p.registry.trusted["ceo@partner.example"] = true

	verdict := p.verifier.Verify(context.Background(), "CEO@partner.example", "")

	assert.Equal(t, StatusPassed, verdict.Status)
	assert.Zero(t, p.resolver.calls)
}

func TestVerifyDomainNotRegistered(t *testing.T) {
	p := newPipeline()
	p.resolver.result = &DomainExistence{}

	verdict := p.verifier.Verify(context.Background(), "user@unregistered.test", "")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonDomainDoesNotExist, verdict.Reason)
	assert.Zero(t, p.prober.calls, "probe must not run for non-existent domains")
}

func TestVerifyDomainTooYoung(t *testing.T) {
	p := newPipeline()
	p.resolver.result = &DomainExistence{
		Registered:      true,
		AgeInDays:       Pointer(2.0),
		HasMailExchange: true,
	}

	verdict := p.verifier.Verify(context.Background(), "user@example-new-domain.test", "")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonDomainDoesNotExist, verdict.Reason)
}

func TestVerifyDomainWithoutMX(t *testing.T) {
	p := newPipeline()
	p.resolver.result = &DomainExistence{
		Registered:      true,
		AgeInDays:       Pointer(365.0),
		HasMailExchange: false,
	}

	verdict := p.verifier.Verify(context.Background(), "user@nomx.example", "")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonDomainDoesNotExist, verdict.Reason)
}

func TestVerifyMailServerUnreachable(t *testing.T) {
	p := newPipeline()
	p.prober.reachable = false

	verdict := p.verifier.Verify(context.Background(), "user@unreachable.example", "")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonMailServerUnreachable, verdict.Reason)
	assert.Equal(t, 1, p.resolver.calls, "existence runs before the probe")
}

func TestVerifyLookupUnavailableIsError(t *testing.T) {
	p := newPipeline()
	p.resolver.result = nil
	p.resolver.err = ErrLookupUnavailable

	verdict := p.verifier.Verify(context.Background(), "user@flaky.example", "")

	assert.Equal(t, StatusError, verdict.Status, "transport failure is not a policy rejection")
	assert.Equal(t, ReasonLookupUnavailable, verdict.Reason)
}

func TestVerifyRegistryUnavailableIsError(t *testing.T) {
	p := newPipeline()
	p.registry.err = errors.New("connection refused")

	verdict := p.verifier.Verify(context.Background(), "user@any.example", "")

	assert.Equal(t, StatusError, verdict.Status)
	assert.Equal(t, ReasonRegistryUnavailable, verdict.Reason)
}

func TestVerifyProviderRequiresAuthorizationCode(t *testing.T) {
	p := newPipeline()

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "")

	assert.Equal(t, StatusError, verdict.Status, "missing code must not silently pass")
	assert.Equal(t, ReasonAuthorizationRequired, verdict.Reason)
	assert.Zero(t, p.provider.calls)
}

func TestVerifyProviderAccountTooNew(t *testing.T) {
	p := newPipeline()
	p.provider.earliest = Pointer(time.Now().Add(-2 * time.Hour))

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "auth-code")

	assert.Equal(t, StatusFailed, verdict.Status)
	assert.Equal(t, ReasonAccountTooNew, verdict.Reason)
}

func TestVerifyProviderAccountOldEnough(t *testing.T) {
	p := newPipeline()
	p.provider.earliest = Pointer(time.Now().Add(-72 * time.Hour))

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "auth-code")

	assert.Equal(t, StatusPassed, verdict.Status)
	assert.Equal(t, 1, p.provider.calls)
}

func TestVerifyProviderEmptyMailboxIsNonBlocking(t *testing.T) {
	p := newPipeline()
	p.provider.earliest = nil

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "auth-code")

	assert.Equal(t, StatusPassed, verdict.Status)
}

func TestVerifyProviderAuthExchangeFailed(t *testing.T) {
	p := newPipeline()
	p.provider.err = ErrAuthExchangeFailed

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "bad-code")

	assert.Equal(t, StatusError, verdict.Status)
	assert.Equal(t, ReasonAuthExchangeFailed, verdict.Reason)
}

func TestVerifyProviderUnavailable(t *testing.T) {
	p := newPipeline()
	p.provider.err = ErrProviderUnavailable

	verdict := p.verifier.Verify(context.Background(), "user@gmail.com", "auth-code")

	assert.Equal(t, StatusError, verdict.Status)
	assert.Equal(t, ReasonProviderUnavailable, verdict.Reason)
}

func TestVerifyNonProviderSkipsAccountAge(t *testing.T) {
	p := newPipeline()

	verdict := p.verifier.Verify(context.Background(), "user@company.example", "unused-code")

	assert.Equal(t, StatusPassed, verdict.Status)
	assert.Zero(t, p.provider.calls, "account age only applies to provider domains")
}

func TestVerifyIsIdempotent(t *testing.T) {
	p := newPipeline()
	p.resolver.result = &DomainExistence{
		Registered:      true,
		AgeInDays:       Pointer(30.0),
		HasMailExchange: true,
	}

	first := p.verifier.Verify(context.Background(), "user@stable.example", "")
	second := p.verifier.Verify(context.Background(), "user@stable.example", "")

	require.NotNil(t, first)
	assert.Equal(t, first, second)
}
