package services

import (
	"context"
	"log"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

type CollectorService struct {
	repo      ports.EventRepository
	ipSalt    string
	anonymize bool
	now       func() time.Time
}

// NewCollectorService stores events in repo. IPs are hashed with ipSalt and,
// when anonymize is set, masked before hashing.
func NewCollectorService(repo ports.EventRepository, ipSalt string, anonymize bool) *CollectorService {
	return &CollectorService{
		repo:      repo,
		ipSalt:    ipSalt,
		anonymize: anonymize,
		now:       time.Now,
	}
}

func (s *CollectorService) Track(ctx context.Context, event domain.Event, meta domain.RequestMeta) (*domain.TrackResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	if IsBot(meta.UserAgent) {
		log.Printf("Bot detected: %q", meta.UserAgent)
		return &domain.TrackResult{Status: domain.TrackIgnored, Message: "Bot detected"}, nil
	}

	if meta.IP == "" || meta.IP == unknownIP {
		log.Printf("Could not determine IP address")
		return &domain.TrackResult{Status: domain.TrackError, Message: "IP address not found"}, nil
	}

	visitor := &domain.Visitor{
		IPHash:           StoredIP(meta.IP, s.ipSalt, s.anonymize),
		Country:          optionalString(meta.Country),
		DeviceType:       optionalString(DeviceType(meta.UserAgent)),
		Referrer:         meta.Referrer,
		UTMSource:        event.UTMSource,
		UTMMedium:        event.UTMMedium,
		UTMCampaign:      event.UTMCampaign,
		ScreenResolution: meta.ScreenResolution,
	}

	stored := &domain.StoredEvent{
		PageURL:     event.PageURL,
		EventType:   event.EventType,
		TimeSpent:   event.TimeSpent,
		ScrollDepth: event.Depth(),
		ClickTarget: event.ClickTarget,
		CreatedAt:   s.now(),
	}

	if err := s.repo.RecordEvent(ctx, visitor, stored); err != nil {
		return nil, err
	}

	return &domain.TrackResult{
		Status:    domain.TrackSuccess,
		VisitorID: visitor.ID,
		EventID:   stored.ID,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ ports.CollectorService = (*CollectorService)(nil)
