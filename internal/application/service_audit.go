package application

import (
	"context"

	"github.com/securemsg/auth-service/internal/domain"
)

// RecordHoneypotHit stores a probe against a decoy endpoint. Failures are only logged;
// the prober always gets the same answer.
func (s *Service) RecordHoneypotHit(ctx context.Context, ipAddress, userAgent, endpoint string) {
	appLogger().WarnContext(ctx, "honeypot endpoint hit",
		"operation", "honeypot",
		"outcome", "detected",
		"ip_address", ipAddress,
		"endpoint", endpoint,
	)
	s.metrics.Observe("honeypot", "detected")
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordHoneypotHit(ctx, domain.HoneypotEvent{
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Endpoint:  endpoint,
		CreatedAt: s.nowFn(),
	}); err != nil {
		appLogger().WarnContext(ctx, "failed to persist honeypot event",
			"operation", "honeypot",
			"outcome", "warning",
			"error", err,
		)
	}
}
