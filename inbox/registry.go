package inbox

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NextMind-AI/crm-go/execution"
	"github.com/NextMind-AI/crm-go/messages"
	"github.com/rs/zerolog/log"
)

// Cursor tracks how far back a conversation has been paged.
type Cursor struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// Snapshot is a read-only copy of one conversation's state.
type Snapshot struct {
	Key            string             `json:"key"`
	Messages       []messages.Message `json:"messages"`
	Pagination     Cursor             `json:"pagination"`
	LoadingInitial bool               `json:"loadingInitial"`
	LoadingOlder   bool               `json:"loadingOlder"`
	Error          string             `json:"error,omitempty"`
}

// conversation fields are only touched while holding the key's slot in the
// registry's serializer. The atomics are also read lock-free by cross-key
// queries.
type conversation struct {
	key        string
	messages   []messages.Message
	cursor     Cursor
	err        string
	generation uint64

	loadingInitial atomic.Bool
	loadingOlder   atomic.Bool
	lastAccess     atomic.Int64
	// pins counts callers between lookup and the end of their update.
	pins atomic.Int32
}

func newConversation(key string, limit int) *conversation {
	return &conversation{
		key:    key,
		cursor: Cursor{Page: 1, Limit: limit},
	}
}

func (c *conversation) snapshot() Snapshot {
	return Snapshot{
		Key:            c.key,
		Messages:       append([]messages.Message{}, c.messages...),
		Pagination:     c.cursor,
		LoadingInitial: c.loadingInitial.Load(),
		LoadingOlder:   c.loadingOlder.Load(),
		Error:          c.err,
	}
}

func (c *conversation) busy() bool {
	return c.loadingInitial.Load() || c.loadingOlder.Load()
}

func (c *conversation) evictable() bool {
	return !c.busy() && c.pins.Load() == 0
}

// Registry owns the per-conversation state. Each key is independent; all
// mutation of a key goes through its serializer slot.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	active        string

	limit            int
	maxConversations int
	exec             *execution.Manager
	now              func() time.Time
}

// NewRegistry creates a registry whose conversations page by limit.
// maxConversations > 0 enables least-recently-used eviction.
func NewRegistry(limit, maxConversations int) *Registry {
	if limit <= 0 {
		limit = messages.DefaultLimit
	}
	return &Registry{
		conversations:    make(map[string]*conversation),
		limit:            limit,
		maxConversations: maxConversations,
		exec:             execution.NewManager(),
		now:              time.Now,
	}
}

// GetOrCreate returns the state for key, creating an empty conversation on
// first use.
func (r *Registry) GetOrCreate(key string) Snapshot {
	var snap Snapshot
	r.update(key, func(c *conversation) {
		snap = c.snapshot()
	})
	return snap
}

// Lookup returns the state for key without creating it.
func (r *Registry) Lookup(key string) (Snapshot, bool) {
	var snap Snapshot
	ok := r.updateExisting(key, func(c *conversation) {
		snap = c.snapshot()
	})
	return snap, ok
}

// Reset clears the buffer, cursor, flags and error of key. Fetches that were
// in flight for the previous state are discarded when they complete.
func (r *Registry) Reset(key string) {
	r.updateExisting(key, func(c *conversation) {
		c.messages = nil
		c.cursor = Cursor{Page: 1, Limit: c.cursor.Limit}
		c.err = ""
		c.generation++
		c.loadingInitial.Store(false)
		c.loadingOlder.Store(false)
	})
}

// SetActive records the conversation currently selected in the UI.
func (r *Registry) SetActive(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = key
}

func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// mounted reports whether UI-visible state for key should be updated: the key
// is selected, or nothing is selected at all.
func (r *Registry) mounted(key string) bool {
	active := r.Active()
	return active == "" || active == key
}

// Keys returns the registered conversation keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.conversations))
	for k := range r.conversations {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// AnyLoading reports whether any conversation has an initial or older fetch
// in flight.
func (r *Registry) AnyLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conversations {
		if c.busy() {
			return true
		}
	}
	return false
}

func (r *Registry) update(key string, fn func(c *conversation)) {
	c := r.getOrCreate(key)
	defer c.pins.Add(-1)

	r.exec.Run(key, func() {
		c.lastAccess.Store(r.now().UnixNano())
		fn(c)
	})
}

func (r *Registry) updateExisting(key string, fn func(c *conversation)) bool {
	r.mu.RLock()
	c, ok := r.conversations[key]
	if ok {
		c.pins.Add(1)
	}
	r.mu.RUnlock()
	if !ok {
		return false
	}
	defer c.pins.Add(-1)

	r.exec.Run(key, func() {
		c.lastAccess.Store(r.now().UnixNano())
		fn(c)
	})
	return true
}

// getOrCreate returns key's conversation pinned against eviction. The caller
// must release the pin.
func (r *Registry) getOrCreate(key string) *conversation {
	r.mu.RLock()
	c, ok := r.conversations[key]
	if ok {
		c.pins.Add(1)
	}
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conversations[key]; ok {
		c.pins.Add(1)
		return c
	}

	if r.maxConversations > 0 && len(r.conversations) >= r.maxConversations {
		r.evictLocked()
	}

	c = newConversation(key, r.limit)
	c.lastAccess.Store(r.now().UnixNano())
	c.pins.Add(1)
	r.conversations[key] = c

	log.Debug().Str("conversation_key", key).Int("conversations", len(r.conversations)).Msg("Conversation registered")
	return c
}

// evictLocked drops the least recently used conversation that is not active,
// loading or pinned by a pending update. Caller holds r.mu.
func (r *Registry) evictLocked() {
	var (
		victim string
		oldest int64
	)
	for key, c := range r.conversations {
		if key == r.active || !c.evictable() {
			continue
		}
		if at := c.lastAccess.Load(); victim == "" || at < oldest {
			victim, oldest = key, at
		}
	}
	if victim == "" {
		return
	}

	delete(r.conversations, victim)
	log.Info().Str("conversation_key", victim).Msg("Evicted least recently used conversation")
}
