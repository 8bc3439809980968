package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	// DefaultHashHexLen truncates content hashes for storage; 24 hex chars
	// keeps collision odds negligible at fleet scale.
	DefaultHashHexLen = 24

	// fuzzyThreshold is the minimum normalized similarity for two asset keys
	// to land in the same equipment group ("EX-45" vs "EX45").
	fuzzyThreshold = 0.85

	// locationHashPrefix bounds how much of the free-text location feeds the
	// hash, so trailing vendor noise does not split identical records.
	locationHashPrefix = 12
)

// Reject reasons recorded in the audit log.
const (
	ReasonExactHash = "exact-hash"
	ReasonFuzzy     = "fuzzy-match"
)

// Reject is a record excluded from aggregation, kept for audit reporting.
type Reject struct {
	Event  Event
	Reason string
	Hash   string
}

// Session owns the admitted-hash set for one ingestion run. It is created by
// the caller, passed through the pipeline, and discarded (or drained back to
// the store) when the run ends. Not safe for concurrent producers.
type Session struct {
	hashLen  int
	seen     map[string]struct{}
	admitted []Event
	rejects  []Reject
	resolved bool
}

// NewSession creates an empty dedup session.
func NewSession(hashHexLen int) *Session {
	if hashHexLen <= 0 {
		hashHexLen = DefaultHashHexLen
	}
	return &Session{
		hashLen: hashHexLen,
		seen:    make(map[string]struct{}),
	}
}

// Seed pre-loads admitted hashes from a previous run of the same target date,
// making re-runs idempotent.
func (s *Session) Seed(hashes []string) {
	for _, h := range hashes {
		s.seen[h] = struct{}{}
	}
}

// Admit applies the exact-hash check. The returned hash is always the
// event's content hash, admitted or not.
func (s *Session) Admit(ev Event) (bool, string) {
	h := ContentHash(ev, s.hashLen)
	if _, dup := s.seen[h]; dup {
		s.rejects = append(s.rejects, Reject{Event: ev, Reason: ReasonExactHash, Hash: h})
		return false, h
	}
	s.seen[h] = struct{}{}
	s.admitted = append(s.admitted, ev)
	return true, h
}

// Resolve runs the batch fuzzy pass over everything admitted so far and
// returns the surviving events in original admission order. Asset keys with
// pairwise similarity at or above the threshold form one equipment group;
// within a group, later records whose amounts round to the same integer as an
// earlier record are rejected. First occurrence always wins, ties broken by
// admission order, so the result is identical on every run.
func (s *Session) Resolve() []Event {
	if s.resolved {
		return s.admitted
	}
	s.resolved = true

	type groupRep struct {
		key string
		id  int
	}
	var reps []groupRep
	groupOf := func(assetKey string) int {
		up := strings.ToUpper(assetKey)
		for _, r := range reps {
			if Similarity(r.key, up) >= fuzzyThreshold {
				return r.id
			}
		}
		id := len(reps)
		reps = append(reps, groupRep{key: up, id: id})
		return id
	}

	firstSeen := make(map[string]struct{})
	kept := s.admitted[:0:0]
	for _, ev := range s.admitted {
		if ev.AssetKey == "" || !ev.HasAmount {
			kept = append(kept, ev)
			continue
		}
		key := fmt.Sprintf("%d|%s|%s|%s|%.0f",
			groupOf(ev.AssetKey), strings.ToUpper(ev.DriverKey), ev.Kind, ev.Date, ev.Amount)
		if _, dup := firstSeen[key]; dup {
			s.rejects = append(s.rejects, Reject{Event: ev, Reason: ReasonFuzzy, Hash: ContentHash(ev, s.hashLen)})
			continue
		}
		firstSeen[key] = struct{}{}
		kept = append(kept, ev)
	}
	s.admitted = kept
	return s.admitted
}

// Rejects returns every record rejected during this session, exact and fuzzy.
func (s *Session) Rejects() []Reject {
	return s.rejects
}

// RejectCount returns the number of rejects for the given reason.
func (s *Session) RejectCount(reason string) int {
	n := 0
	for _, r := range s.rejects {
		if r.Reason == reason {
			n++
		}
	}
	return n
}

// Hashes returns the admitted hash set for persistence.
func (s *Session) Hashes() []string {
	out := make([]string, 0, len(s.seen))
	for h := range s.seen {
		out = append(out, h)
	}
	return out
}

// ContentHash digests the semantic fields of an event: identities uppercased,
// the timestamp rounded to the minute, the location truncated. Provenance
// (source file, row index) is excluded, so re-exports of the same record hash
// identically.
func ContentHash(ev Event, hexLen int) string {
	loc := strings.ToUpper(strings.TrimSpace(ev.Location))
	if len(loc) > locationHashPrefix {
		loc = loc[:locationHashPrefix]
	}
	clock := ""
	if ev.HasClock {
		clock = fmt.Sprintf("%02d:%02d+%d", ev.Clock.Hour, ev.Clock.Minute, ev.Clock.DayOffset)
	}
	key := strings.Join([]string{
		strings.ToUpper(ev.DriverKey),
		strings.ToUpper(ev.AssetKey),
		string(ev.Kind),
		ev.Date,
		clock,
		loc,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	full := hex.EncodeToString(sum[:])
	if hexLen <= 0 || hexLen >= len(full) {
		return full
	}
	return full[:hexLen]
}

// Similarity is a normalized Levenshtein ratio in [0, 1]: edit distance over
// combined length, so "EX-45" and "EX45" score ~0.89.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	sum := len([]rune(a)) + len([]rune(b))
	if sum == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(sum)
}
