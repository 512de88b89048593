package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"edufund-backend/pkg/id"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderActorID   = "Ax-Actor-Id"

	keyPrefix = "idem:"
)

// investors, operators and services; no separators that would break the key
var reActor = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type axHeaders struct {
	RequestID string
	RequestAt time.Time
	ActorID   string
}

// key scopes a request id to one actor on one route.
func (h axHeaders) key(method, route string) string {
	return keyPrefix + strings.ToLower(method) + ":" + route + ":" + h.ActorID + ":" + h.RequestID
}

// parseHeaders validates the three Ax- headers against now.
func parseHeaders(hdr http.Header, now time.Time) (axHeaders, error) {
	var out axHeaders

	out.RequestID = strings.TrimSpace(hdr.Get(HeaderRequestID))
	if out.RequestID == "" {
		return out, fmt.Errorf("missing %s", HeaderRequestID)
	}
	if !validRequestID(out.RequestID) {
		return out, fmt.Errorf("invalid %s format", HeaderRequestID)
	}

	at, err := parseRequestAt(hdr.Get(HeaderRequestAt))
	if err != nil {
		return out, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return out, fmt.Errorf("%s too skewed", HeaderRequestAt)
	}
	out.RequestAt = at

	out.ActorID = strings.TrimSpace(hdr.Get(HeaderActorID))
	if out.ActorID == "" {
		return out, fmt.Errorf("missing %s", HeaderActorID)
	}
	if !reActor.MatchString(out.ActorID) {
		return out, fmt.Errorf("invalid %s", HeaderActorID)
	}
	return out, nil
}

// validRequestID accepts a public id or a canonical lowercase RFC 4122 uuid.
func validRequestID(s string) bool {
	if id.Valid(s) {
		return true
	}
	if len(s) != 36 || s != strings.ToLower(s) {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 5
}

// parseRequestAt accepts epoch seconds, epoch milliseconds, or RFC3339 with a zone.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }
