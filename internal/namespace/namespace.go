package namespace

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
)

// Backing selects the storage layout behind a log.
type Backing string

const (
	// BackingBigArray stores items through the sharded array with
	// server-discovered positions.
	BackingBigArray Backing = "bigarray"
	// BackingSequence stores items as one contiguous sequence.
	BackingSequence Backing = "sequence"
)

// Valid reports whether b names a known backing.
func (b Backing) Valid() bool {
	return b == BackingBigArray || b == BackingSequence
}

// Meta holds namespace metadata and optional limits/overrides.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
}

// LogMeta describes one log within a namespace. Geometry is fixed at
// creation: changing ArraySize would re-address every stored position.
type LogMeta struct {
	Name        string    `json:"name"`
	Backing     Backing   `json:"backing"`
	ArrayID     uuid.UUID `json:"arrayId"`
	ArraySize   uint64    `json:"arraySize"`
	SectionSize uint64    `json:"sectionSize"`
	CreatedAtMs int64     `json:"createdAtMs"`
}

// Defaults returns opinionated defaults for new namespaces.
func Defaults() Meta {
	return Meta{
		PayloadMaxBytes: 1 << 20, // 1 MiB
	}
}

var (
	nsMetaPrefix  = []byte("nsmeta/")
	logMetaPrefix = []byte("logmeta/")
)

// nsMetaKey builds the metadata key for a namespace.
func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// logMetaKey builds the metadata key for a log within a namespace.
func logMetaKey(ns, logName string) []byte {
	k := make([]byte, 0, len(logMetaPrefix)+len(ns)+1+len(logName))
	k = append(k, logMetaPrefix...)
	k = append(k, ns...)
	k = append(k, '/')
	k = append(k, logName...)
	return k
}

// Validator checks namespace and log names against a configured pattern.
type Validator struct {
	re *regexp.Regexp
}

// NewValidator compiles pattern as a full-string match.
func NewValidator(pattern string) (*Validator, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("namespace: bad name pattern: %w", err)
	}
	return &Validator{re: re}, nil
}

// Check returns an error when name does not match the pattern.
func (v *Validator) Check(name string) error {
	if !v.re.MatchString(name) {
		return fmt.Errorf("namespace: invalid name %q", name)
	}
	return nil
}

// EnsureNamespace creates a namespace meta record if absent, returning the
// effective meta. Idempotent: returns existing if already present.
func EnsureNamespace(db *pebblestore.DB, name string) (Meta, error) {
	key := nsMetaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// fallthrough to rewrite if corrupted
	}
	m := Defaults()
	m.Name = name
	m.CreatedAtMs = time.Now().UnixMilli()
	bytes, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// GetNamespace loads a namespace meta record without creating it.
func GetNamespace(db *pebblestore.DB, name string) (Meta, bool, error) {
	b, err := db.Get(nsMetaKey(name))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Meta{}, false, nil
		}
		return Meta{}, false, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// deriveArrayID names a log's storage anchor from its namespace and name.
// Deterministic so that racing creators of the same log converge on one
// identity: every partition and index sequence derives from the ArrayID, and
// two distinct IDs for one log would strand whichever set of items loses the
// meta write.
func deriveArrayID(ns, logName string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ledger:"+ns+"/"+logName))
}

// EnsureLog creates a log meta record if absent, returning the effective
// meta. ArrayID is assigned at creation and anchors the log's derived
// partition and index identifiers. Idempotent with a twist: re-ensuring with
// a different backing or geometry is an error, not a silent rewrite.
func EnsureLog(db *pebblestore.DB, ns string, want LogMeta) (LogMeta, error) {
	key := logMetaKey(ns, want.Name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m LogMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return LogMeta{}, err
		}
		if m.Backing != want.Backing || m.ArraySize != want.ArraySize || m.SectionSize != want.SectionSize {
			return LogMeta{}, fmt.Errorf("namespace: log %q exists with different settings", want.Name)
		}
		return m, nil
	}
	if !want.Backing.Valid() {
		return LogMeta{}, fmt.Errorf("namespace: unknown backing %q", want.Backing)
	}
	if want.ArrayID == uuid.Nil {
		want.ArrayID = deriveArrayID(ns, want.Name)
	}
	want.CreatedAtMs = time.Now().UnixMilli()
	bytes, err := json.Marshal(want)
	if err != nil {
		return LogMeta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return LogMeta{}, err
	}
	return want, nil
}

// GetLog loads a log meta record without creating it.
func GetLog(db *pebblestore.DB, ns, logName string) (LogMeta, bool, error) {
	b, err := db.Get(logMetaKey(ns, logName))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return LogMeta{}, false, nil
		}
		return LogMeta{}, false, err
	}
	var m LogMeta
	if err := json.Unmarshal(b, &m); err != nil {
		return LogMeta{}, false, err
	}
	return m, true, nil
}

// ListNamespaces returns all namespace metas in name order.
func ListNamespaces(db *pebblestore.DB) ([]Meta, error) {
	upper := append(append([]byte{}, nsMetaPrefix...), 0xff)
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: nsMetaPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Meta
	for it.First(); it.Valid(); it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListLogs returns the log metas of a namespace in name order.
func ListLogs(db *pebblestore.DB, ns string) ([]LogMeta, error) {
	lower := logMetaKey(ns, "")
	upper := append(append([]byte{}, lower...), 0xff)
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []LogMeta
	for it.First(); it.Valid(); it.Next() {
		var m LogMeta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
