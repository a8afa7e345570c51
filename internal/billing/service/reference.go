package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reference is the parsed form of a gateway external_reference. The
// gateway stores it verbatim at charge creation time, so it is the most
// direct link back to the batch (and optionally the payment) being paid.
// Format: "lote:<uuid>" optionally followed by ";pag:<uuid>".
type Reference struct {
	BatchID   *uuid.UUID
	PaymentID *uuid.UUID
}

// ParseExternalReference parses a gateway external reference. An empty
// string is not an error; it simply resolves to nothing and the caller
// falls through to the next resolution step.
func ParseExternalReference(raw string) (Reference, error) {
	var ref Reference
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ref, nil
	}

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			return Reference{}, fmt.Errorf("malformed reference segment %q", part)
		}
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			return Reference{}, fmt.Errorf("reference segment %q: %w", part, err)
		}
		switch strings.TrimSpace(key) {
		case "lote":
			ref.BatchID = &id
		case "pag":
			ref.PaymentID = &id
		default:
			return Reference{}, fmt.Errorf("unknown reference key %q", key)
		}
	}
	return ref, nil
}
