package ports

import "context"

// Mailer delivers outbound notifications. Send failures surface as delivery
// errors; callers must never let them roll back a committed state change.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Storage holds opaque binary objects (signatures, supporting documents).
// Upload returns a public URL; Delete failures are best-effort territory.
type Storage interface {
	Upload(ctx context.Context, data []byte, path string) (url string, err error)
	Delete(ctx context.Context, path string) error
}
