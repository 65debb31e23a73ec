package utils

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPProber checks whether a domain's mail transfer agent is live by
// dialing its MX hosts and attempting an EHLO + STARTTLS handshake.
// Best-effort signal only: every timeout, refusal, or protocol failure
// collapses to false, never an error.
type SMTPProber struct {
	Port      int
	Timeout   time.Duration
	HelloHost string
	Logger    *log.Logger

	lookupMX func(ctx context.Context, domain string) []string
}

func NewSMTPProber(port int, timeout time.Duration, helloHost string, logger *log.Logger) *SMTPProber {
	p := &SMTPProber{
		Port:      port,
		Timeout:   timeout,
		HelloHost: helloHost,
		Logger:    logger,
	}
	p.lookupMX = p.resolveMailHosts
	return p
}

// Probe reports whether any of the domain's mail hosts completes the
// handshake. Hosts are tried in MX preference order, falling back to
// the apex domain when no MX records resolve.
func (p *SMTPProber) Probe(ctx context.Context, domain string) bool {
	for _, host := range p.lookupMX(ctx, domain) {
		if p.probeHost(ctx, host) {
			return true
		}
	}
	return false
}

func (p *SMTPProber) probeHost(ctx context.Context, host string) bool {
	dialer := net.Dialer{Timeout: p.Timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(p.Port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()

	// Bound every SMTP command, not just the dial
	conn.SetDeadline(time.Now().Add(p.Timeout))

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return false
	}
	defer client.Close()

	if err := client.Hello(p.HelloHost); err != nil {
		return false
	}

	// The session must upgrade to an encrypted channel
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return false
	}
	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return false
	}

	_ = client.Quit()
	p.Logger.Printf("SMTP handshake succeeded for %s", addr)
	return true
}

func (p *SMTPProber) resolveMailHosts(ctx context.Context, domain string) []string {
	records, err := getMXRecords(ctx, domain)
	if err != nil || len(records) == 0 {
		return []string{domain}
	}

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		hosts = append(hosts, strings.TrimSuffix(mx.Host, "."))
	}
	return hosts
}
