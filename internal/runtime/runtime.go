package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/rzbill/ledger/internal/bigarray"
	cfgpkg "github.com/rzbill/ledger/internal/config"
	"github.com/rzbill/ledger/internal/namespace"
	"github.com/rzbill/ledger/internal/notification"
	"github.com/rzbill/ledger/internal/sequenced"
	"github.com/rzbill/ledger/internal/sequencer"
	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
	"github.com/rzbill/ledger/pkg/log"
)

var (
	// ErrNamespaceNotFound reports an unknown namespace when auto-creation is
	// disabled or the name is not allowed.
	ErrNamespaceNotFound = errors.New("runtime: namespace not found")
	// ErrNamespaceNotAllowed reports a namespace outside the allow-list or
	// over the configured limit.
	ErrNamespaceNotAllowed = errors.New("runtime: namespace not allowed")
	// ErrLogNotFound reports an unknown log within a known namespace.
	ErrLogNotFound = errors.New("runtime: log not found")
)

// appendAttempts bounds optimistic append retries under contention.
const appendAttempts = 10

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
}

// Runtime wires storage, config, and log facades for a single-node instance.
type Runtime struct {
	db        *pebblestore.DB
	config    cfgpkg.Config
	logger    log.Logger
	validator *namespace.Validator
	redisPool *redis.Pool

	mu     sync.Mutex
	stores map[string]*sequenced.Store
	logs   map[string]*Log

	// createMu serializes log creation so concurrent creators cannot race
	// the meta check-then-set.
	createMu sync.Mutex
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval})
	if err != nil {
		return nil, err
	}
	validator, err := namespace.NewValidator(opts.Config.NamespaceNameRegex)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rt := &Runtime{
		db:        db,
		config:    opts.Config,
		logger:    logger.WithComponent("runtime"),
		validator: validator,
		stores:    map[string]*sequenced.Store{},
		logs:      map[string]*Log{},
	}
	if addr := opts.Config.RedisAddr; addr != "" {
		rt.redisPool = sequencer.NewRedisPool(addr)
		rt.logger.Info("distributed sequencing enabled", log.Str("redis_addr", addr))
	}
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.redisPool != nil {
		_ = r.redisPool.Close()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies storage is usable and, when configured, that Redis
// answers.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	if r.redisPool != nil {
		conn := r.redisPool.Get()
		defer conn.Close()
		if _, err := conn.Do("PING"); err != nil {
			return fmt.Errorf("runtime: redis: %w", err)
		}
	}
	return nil
}

// EnsureNamespace creates a namespace record if absent, subject to the
// configured policy: name pattern, allow-list, auto-creation, and limit.
func (r *Runtime) EnsureNamespace(name string) (namespace.Meta, error) {
	if err := r.validator.Check(name); err != nil {
		return namespace.Meta{}, err
	}
	if allowed := r.config.AllowedNamespaces; len(allowed) > 0 && !contains(allowed, name) {
		return namespace.Meta{}, ErrNamespaceNotAllowed
	}
	if _, ok, err := namespace.GetNamespace(r.db, name); err != nil {
		return namespace.Meta{}, err
	} else if ok {
		return namespace.EnsureNamespace(r.db, name)
	}
	if !r.config.AllowAutoCreateNamespaces && name != r.config.DefaultNamespaceName {
		return namespace.Meta{}, ErrNamespaceNotFound
	}
	if max := r.config.MaxNamespaces; max > 0 {
		existing, err := namespace.ListNamespaces(r.db)
		if err != nil {
			return namespace.Meta{}, err
		}
		if len(existing) >= max {
			return namespace.Meta{}, ErrNamespaceNotAllowed
		}
	}
	r.logger.Info("namespace created", log.Str("namespace", name))
	return namespace.EnsureNamespace(r.db, name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// storeFor returns the namespace-scoped item store, cached.
func (r *Runtime) storeFor(ns string) *sequenced.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[ns]; ok {
		return s
	}
	s := sequenced.OpenStore(r.db, ns)
	s.MaxPayloadBytes = r.config.LogDefaults.PayloadMaxBytes
	r.stores[ns] = s
	return s
}

// CreateLog ensures the namespace and creates (or re-opens) a log. Zero
// geometry falls back to the configured defaults.
func (r *Runtime) CreateLog(ns, logName string, backing namespace.Backing, arraySize, sectionSize uint64) (*Log, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()
	if _, err := r.EnsureNamespace(ns); err != nil {
		return nil, err
	}
	if err := r.validator.Check(logName); err != nil {
		return nil, err
	}
	if arraySize == 0 {
		arraySize = r.config.LogDefaults.ArraySize
	}
	if sectionSize == 0 {
		sectionSize = r.config.LogDefaults.SectionSize
	}
	meta, err := namespace.EnsureLog(r.db, ns, namespace.LogMeta{
		Name:        logName,
		Backing:     backing,
		ArraySize:   arraySize,
		SectionSize: sectionSize,
	})
	if err != nil {
		return nil, err
	}
	return r.openLogMeta(ns, meta)
}

// OpenLog opens an existing log. ErrLogNotFound when it was never created.
func (r *Runtime) OpenLog(ns, logName string) (*Log, error) {
	r.mu.Lock()
	if l, ok := r.logs[ns+"/"+logName]; ok {
		r.mu.Unlock()
		return l, nil
	}
	r.mu.Unlock()

	meta, ok, err := namespace.GetLog(r.db, ns, logName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLogNotFound
	}
	return r.openLogMeta(ns, meta)
}

func (r *Runtime) openLogMeta(ns string, meta namespace.LogMeta) (*Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ns + "/" + meta.Name
	if l, ok := r.logs[key]; ok {
		return l, nil
	}

	store := r.stores[ns]
	if store == nil {
		store = sequenced.OpenStore(r.db, ns)
		store.MaxPayloadBytes = r.config.LogDefaults.PayloadMaxBytes
		r.stores[ns] = store
	}

	l := &Log{namespace: ns, meta: meta, store: store}
	var src notification.Source
	switch meta.Backing {
	case namespace.BackingBigArray:
		array, err := bigarray.New(store, meta.ArrayID, meta.ArraySize)
		if err != nil {
			return nil, err
		}
		l.array = array
		if r.redisPool != nil {
			l.seq = sequencer.NewRedis(r.redisPool, "ledger:seq:"+key)
		}
		src = notification.NewArraySource(array)
	case namespace.BackingSequence:
		src = notification.NewSequenceSource(store, meta.ArrayID)
	default:
		return nil, fmt.Errorf("runtime: unknown backing %q", meta.Backing)
	}
	notif, err := notification.NewLog(src, meta.SectionSize)
	if err != nil {
		return nil, err
	}
	l.notif = notif
	r.logs[key] = l
	return l, nil
}

// ListLogs returns the log metas of a namespace.
func (r *Runtime) ListLogs(ns string) ([]namespace.LogMeta, error) {
	return namespace.ListLogs(r.db, ns)
}

// Positions returns the durable reader-position store for a namespace.
func (r *Runtime) Positions(ns string) *notification.PositionStore {
	return notification.OpenPositionStore(r.db, ns)
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime's logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// Log is the append/read facade over one configured log.
type Log struct {
	namespace string
	meta      namespace.LogMeta
	store     *sequenced.Store
	array     *bigarray.BigArray  // big-array backing only
	seq       sequencer.Sequencer // optional issued-position path
	notif     *notification.LocalLog
}

// Meta returns the log's immutable settings.
func (l *Log) Meta() namespace.LogMeta { return l.meta }

// Append writes an item at the next position and returns it.
//
// Sequence-backed logs serialize writers for a gap-free stream. Big-array
// logs append optimistically: through the shared sequencer when one is
// configured, otherwise by discovery with bounded retries.
func (l *Log) Append(ctx context.Context, topic string, data []byte) (uint64, error) {
	if l.array == nil {
		return l.store.InsertNext(ctx, l.meta.ArrayID, topic, data)
	}
	if l.seq != nil {
		return l.array.AppendWith(ctx, l.seq, topic, data, appendAttempts)
	}
	return l.array.AppendRetry(ctx, topic, data, appendAttempts)
}

// AppendAt writes an item at an exact position, failing if the slot is
// already assigned. This is the optimistic-concurrency primitive: the caller
// names the position it believes is next, and a conflict means someone else
// got there first.
func (l *Log) AppendAt(ctx context.Context, pos uint64, topic string, data []byte) error {
	if l.array != nil {
		return l.array.Set(ctx, pos, topic, data)
	}
	return l.store.Insert(ctx, sequenced.Item{
		SequenceID: l.meta.ArrayID,
		Position:   pos,
		Topic:      topic,
		Data:       data,
	})
}

// Get returns the item at pos, ok=false for an unassigned slot.
func (l *Log) Get(ctx context.Context, pos uint64) (notification.Notification, bool, error) {
	if l.array != nil {
		it, ok, err := l.array.Get(ctx, pos)
		if err != nil || !ok {
			return notification.Notification{}, false, err
		}
		return notification.Notification{ID: pos + 1, Topic: it.Topic, Data: it.Data}, true, nil
	}
	it, ok, err := l.store.Get(ctx, l.meta.ArrayID, pos)
	if err != nil || !ok {
		return notification.Notification{}, false, err
	}
	return notification.Notification{ID: pos + 1, Topic: it.Topic, Data: it.Data}, true, nil
}

// NextPosition returns the next unassigned position (the item count when
// there are no gaps).
func (l *Log) NextPosition(ctx context.Context) (uint64, error) {
	if l.array != nil {
		return l.array.NextPosition(ctx)
	}
	last, ok, err := l.store.LastPosition(ctx, l.meta.ArrayID)
	if err != nil || !ok {
		return 0, err
	}
	return last + 1, nil
}

// Section resolves a section by ID, including "current".
func (l *Log) Section(ctx context.Context, id string) (notification.Section, error) {
	return l.notif.Section(ctx, id)
}

// Notifications returns the section log, for readers.
func (l *Log) Notifications() notification.Log { return l.notif }

// Reader returns a resumable reader over the log.
func (l *Log) Reader(opts ...notification.ReaderOption) *notification.Reader {
	return notification.NewReader(l.notif, opts...)
}
