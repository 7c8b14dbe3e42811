package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events for retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers access-policy changes that must be retained.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers denials, rejected signatures and tampering.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity and may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the wallet address the event is about.
	Subject string
	Action  string
	// Resource names what was acted on: a memory id, identity or grant scope.
	Resource  string
	Decision  string
	Reason    string
	RequestID string
	// ActorID is set when the acting wallet differs from Subject.
	ActorID string
}

type AuditEvent string

const (
	// Session events
	EventSessionChallenged        AuditEvent = "session_challenged"
	EventSessionSigned            AuditEvent = "session_signed"
	EventSessionSignatureRejected AuditEvent = "session_signature_rejected"
	EventSessionsSwept            AuditEvent = "sessions_swept"
	EventSessionsEvicted          AuditEvent = "sessions_evicted"

	// Decryption events
	EventDecryptSucceeded  AuditEvent = "decrypt_succeeded"
	EventDecryptDenied     AuditEvent = "decrypt_denied"
	EventIntegrityMismatch AuditEvent = "integrity_mismatch"
	EventBackupKeyUsed     AuditEvent = "backup_key_used"

	// Registry events
	EventContentRegistered AuditEvent = "content_registered"
	EventGrantCreated      AuditEvent = "grant_created"
	EventGrantRevoked      AuditEvent = "grant_revoked"

	// Key server events
	EventShareReleased AuditEvent = "share_released"
	EventShareDenied   AuditEvent = "share_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventContentRegistered: CategoryCompliance,
	EventGrantCreated:      CategoryCompliance,
	EventGrantRevoked:      CategoryCompliance,
	EventBackupKeyUsed:     CategoryCompliance,

	EventSessionSignatureRejected: CategorySecurity,
	EventDecryptDenied:            CategorySecurity,
	EventIntegrityMismatch:        CategorySecurity,
	EventShareDenied:              CategorySecurity,

	EventSessionChallenged: CategoryOperations,
	EventSessionSigned:     CategoryOperations,
	EventSessionsSwept:     CategoryOperations,
	EventSessionsEvicted:   CategoryOperations,
	EventDecryptSucceeded:  CategoryOperations,
	EventShareReleased:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// BatchStore is implemented by stores that can write several events in one
// round trip. All events are written or none are.
type BatchStore interface {
	Store
	AppendBatch(ctx context.Context, events []Event) error
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
