// Package intake turns a raw bounce delivered to the daemon into a stored,
// broadcast record. Both the SMTP listener and the HTTP parse endpoint feed it.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/mailsource"
	"github.io/infrasutra/bouncecsv/internal/metrics"
	"github.io/infrasutra/bouncecsv/internal/sse"
	"github.io/infrasutra/bouncecsv/internal/store"
)

// Transports label where a message entered the daemon.
const (
	TransportSMTP = "smtp"
	TransportHTTP = "http"
)

// Intake statuses recorded in metrics.
const (
	StatusStored    = "stored"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// EventBounce is the SSE event name for a newly stored bounce.
const EventBounce = "bounce"

type Intake struct {
	store     *store.Store
	hub       *sse.Hub
	processor *bounce.Processor
	logger    *slog.Logger
	now       func() time.Time
}

func New(st *store.Store, hub *sse.Hub, processor *bounce.Processor, logger *slog.Logger) *Intake {
	return &Intake{
		store:     st,
		hub:       hub,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
}

// Accept processes raw and stores the resulting bounce. The boolean is false when an
// identical message was already stored; the stored bounce is returned instead and
// nothing is broadcast.
func (in *Intake) Accept(ctx context.Context, transport, name string, raw []byte) (store.Bounce, bool, error) {
	id := uuid.NewString()
	if strings.TrimSpace(name) == "" {
		name = transport + ":" + id
	}

	msg := mailsource.Message{Name: name, Raw: raw}
	result := in.processor.Analyze(msg.RawMessage())

	meta := readMetadata(raw)
	b := store.Bounce{
		ID:        id,
		Source:    name,
		Recipient: result.Record.Recipient,
		Code:      result.Record.Code,
		Reason:    result.Record.Reason,
		Subject:   meta.Subject,
		MessageID: meta.MessageID,
		SentAt:    meta.Date,
		RawHash:   store.HashRaw(raw),
		RawSize:   int64(len(raw)),
		CreatedAt: in.now(),
	}

	inserted, err := in.store.InsertBounce(ctx, b)
	if err != nil {
		metrics.IntakeMessages.WithLabelValues(transport, StatusError).Inc()
		return store.Bounce{}, false, fmt.Errorf("accept bounce: %w", err)
	}
	if !inserted {
		existing, err := in.store.GetBounceByHash(ctx, b.RawHash)
		if err != nil {
			metrics.IntakeMessages.WithLabelValues(transport, StatusError).Inc()
			return store.Bounce{}, false, fmt.Errorf("load duplicate bounce: %w", err)
		}
		metrics.IntakeMessages.WithLabelValues(transport, StatusDuplicate).Inc()
		in.logger.Info("duplicate bounce ignored", "transport", transport, "source", name, "id", existing.ID)
		return existing, false, nil
	}

	metrics.IntakeMessages.WithLabelValues(transport, StatusStored).Inc()
	metrics.Observe(metrics.Outcome{
		Code:       result.Record.Code,
		Diagnostic: result.Diagnostic,
		Matched:    result.Matched,
		Resolved:   result.Resolved,
	})
	in.logger.Info("bounce stored",
		"transport", transport,
		"id", b.ID,
		"recipient", b.Recipient,
		"code", b.Code,
		"reason", b.Reason,
	)
	in.hub.Broadcast(b.Code, sse.Event(EventBounce, NewView(b)))
	return b, true, nil
}

// View is the JSON shape of a stored bounce.
type View struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Recipient string `json:"recipient"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	Subject   string `json:"subject"`
	MessageID string `json:"messageId"`
	SentAt    string `json:"sentAt,omitempty"`
	RawSize   int64  `json:"rawSize"`
	CreatedAt string `json:"createdAt"`
}

func NewView(b store.Bounce) View {
	v := View{
		ID:        b.ID,
		Source:    b.Source,
		Recipient: b.Recipient,
		Code:      b.Code,
		Reason:    b.Reason,
		Subject:   b.Subject,
		MessageID: b.MessageID,
		RawSize:   b.RawSize,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !b.SentAt.IsZero() {
		v.SentAt = b.SentAt.UTC().Format(time.RFC3339)
	}
	return v
}

type metadata struct {
	Subject   string
	MessageID string
	Date      time.Time
}

// readMetadata decodes the top-level header only. Malformed headers leave fields
// empty; classification never depends on them.
func readMetadata(raw []byte) metadata {
	var meta metadata
	// An unknown charset still yields a usable reader.
	reader, _ := mail.CreateReader(bytes.NewReader(raw))
	if reader == nil {
		return meta
	}

	if subject, err := reader.Header.Subject(); err == nil {
		meta.Subject = subject
	}
	if id, err := reader.Header.MessageID(); err == nil {
		meta.MessageID = id
	}
	if date, err := reader.Header.Date(); err == nil {
		meta.Date = date
	}
	return meta
}
