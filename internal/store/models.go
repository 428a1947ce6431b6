package store

import (
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"

	"github.io/infrasutra/bouncecsv/internal/bounce"
)

type Bounce struct {
	ID        string
	Source    string
	Recipient string
	Code      string
	Reason    string
	Subject   string
	MessageID string
	SentAt    time.Time
	RawHash   string
	RawSize   int64
	CreatedAt time.Time
}

// Record drops the intake metadata.
func (b Bounce) Record() bounce.Record {
	return bounce.Record{Source: b.Source, Recipient: b.Recipient, Code: b.Code, Reason: b.Reason}
}

type Filter struct {
	Code   string
	Search string
}

type ReasonCount struct {
	Code   string
	Reason string
	Count  int64
}

// HashRaw identifies a raw message for duplicate detection.
func HashRaw(raw []byte) string {
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
