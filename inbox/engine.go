package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/NextMind-AI/crm-go/messages"
	"github.com/NextMind-AI/crm-go/metrics"
	"github.com/rs/zerolog/log"
)

const (
	directionInitial = "initial"
	directionOlder   = "older"
	directionPoll    = "poll"
)

// Fetcher retrieves one page of a conversation. Page 1 holds the newest
// messages; each page is returned oldest first.
type Fetcher interface {
	FetchPage(ctx context.Context, clinicID, key string, page, limit int) (messages.Page, error)
}

// Engine loads, pages and reconciles conversation buffers held in a Registry.
type Engine struct {
	fetcher  Fetcher
	registry *Registry
	limit    int
	maxConv  int
	now      func() time.Time
}

type Option func(*Engine)

// WithPageLimit sets the page size used for every conversation.
func WithPageLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.limit = limit
		}
	}
}

// WithMaxConversations caps the registry size with LRU eviction.
func WithMaxConversations(n int) Option {
	return func(e *Engine) {
		e.maxConv = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(fetcher Fetcher, opts ...Option) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("inbox: fetcher is required")
	}

	e := &Engine{
		fetcher: fetcher,
		limit:   messages.DefaultLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = NewRegistry(e.limit, e.maxConv)
	e.registry.now = e.now
	return e, nil
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// LoadInitial replaces the buffer of key with the newest page. A second call
// while one is already running is a no-op.
func (e *Engine) LoadInitial(ctx context.Context, clinicID, key string) error {
	if err := validate(clinicID, key); err != nil {
		return err
	}

	var (
		started bool
		gen     uint64
		limit   int
	)
	e.registry.update(key, func(c *conversation) {
		if c.loadingInitial.Load() {
			return
		}
		// A reload supersedes older and poll fetches still in flight.
		c.generation++
		c.loadingOlder.Store(false)
		c.loadingInitial.Store(true)
		c.err = ""
		gen = c.generation
		limit = c.cursor.Limit
		started = true
	})
	if !started {
		metrics.FetchTotal.WithLabelValues(directionInitial, metrics.OutcomeSkipped).Inc()
		log.Debug().Str("conversation_key", key).Msg("Initial load already in flight")
		return nil
	}

	page, fetchErr := e.fetch(ctx, directionInitial, clinicID, key, 1, limit)

	var result error
	e.registry.updateExisting(key, func(c *conversation) {
		if c.generation != gen {
			log.Debug().Str("conversation_key", key).Msg("Discarding initial page fetched before reset")
			return
		}
		c.loadingInitial.Store(false)

		if fetchErr != nil {
			result = e.fail(c, "initial load failed", fetchErr)
			return
		}

		batch := messages.NormalizeBatch(page.Records, key, clinicID, 0, e.now())
		buffer, added := messages.Merge(nil, batch, messages.Append)
		e.observeMerge(directionInitial, len(batch), added)

		c.messages = buffer
		c.cursor = Cursor{
			Page:       1,
			Limit:      limit,
			Total:      len(buffer),
			TotalPages: page.Pagination.TotalPages,
			HasMore:    len(page.Records) == limit,
		}

		log.Info().
			Str("conversation_key", key).
			Int("messages", len(buffer)).
			Bool("has_more", c.cursor.HasMore).
			Msg("Conversation loaded")
	})

	return result
}

// LoadOlder fetches the page after the cursor and prepends it. It does nothing
// when no older page exists or a load is already in flight.
func (e *Engine) LoadOlder(ctx context.Context, clinicID, key string) error {
	if err := validate(clinicID, key); err != nil {
		return err
	}

	var (
		started bool
		gen     uint64
		next    int
		limit   int
	)
	e.registry.updateExisting(key, func(c *conversation) {
		if !c.cursor.HasMore || c.loadingOlder.Load() || c.loadingInitial.Load() {
			return
		}
		c.loadingOlder.Store(true)
		c.err = ""
		gen = c.generation
		next = c.cursor.Page + 1
		limit = c.cursor.Limit
		started = true
	})
	if !started {
		metrics.FetchTotal.WithLabelValues(directionOlder, metrics.OutcomeSkipped).Inc()
		return nil
	}

	page, fetchErr := e.fetch(ctx, directionOlder, clinicID, key, next, limit)

	var result error
	e.registry.updateExisting(key, func(c *conversation) {
		if c.generation != gen {
			log.Debug().Str("conversation_key", key).Int("page", next).Msg("Discarding older page fetched before reset")
			return
		}
		c.loadingOlder.Store(false)

		if fetchErr != nil {
			result = e.fail(c, "loading older messages failed", fetchErr)
			return
		}

		batch := messages.NormalizeBatch(page.Records, key, clinicID, (next-1)*limit, e.now())
		merged, added := messages.Merge(c.messages, batch, messages.Prepend)
		e.observeMerge(directionOlder, len(batch), added)

		c.messages = merged
		c.cursor.Page = next
		c.cursor.Total += added
		c.cursor.HasMore = len(page.Records) == limit
		if len(page.Records) > 0 && added == 0 {
			c.cursor.HasMore = false
		}
		if page.Pagination.TotalPages > 0 {
			c.cursor.TotalPages = page.Pagination.TotalPages
		}

		log.Info().
			Str("conversation_key", key).
			Int("page", next).
			Int("added", added).
			Bool("has_more", c.cursor.HasMore).
			Msg("Older messages merged")
	})

	return result
}

// PollNew re-fetches the newest page and appends messages not yet buffered.
// Fetch failures are logged and swallowed; only invalid input is returned.
func (e *Engine) PollNew(ctx context.Context, clinicID, key string) (int, error) {
	if err := validate(clinicID, key); err != nil {
		return 0, err
	}

	var (
		started bool
		gen     uint64
		limit   int
	)
	e.registry.updateExisting(key, func(c *conversation) {
		if len(c.messages) == 0 {
			return
		}
		gen = c.generation
		limit = c.cursor.Limit
		started = true
	})
	if !started {
		metrics.FetchTotal.WithLabelValues(directionPoll, metrics.OutcomeSkipped).Inc()
		return 0, nil
	}

	page, err := e.fetch(ctx, directionPoll, clinicID, key, 1, limit)
	if err != nil {
		log.Warn().Err(err).Str("conversation_key", key).Msg("Polling for new messages failed")
		return 0, nil
	}

	var added int
	e.registry.updateExisting(key, func(c *conversation) {
		if c.generation != gen || len(c.messages) == 0 {
			return
		}

		batch := messages.NormalizeBatch(page.Records, key, clinicID, 0, e.now())
		merged, n := messages.Merge(c.messages, batch, messages.Append)
		e.observeMerge(directionPoll, len(batch), n)

		c.messages = merged
		c.cursor.Total += n
		added = n
	})

	if added > 0 {
		log.Info().Str("conversation_key", key).Int("added", added).Msg("New messages appended")
	}
	return added, nil
}

// Refresh discards everything known about key and loads it from scratch.
func (e *Engine) Refresh(ctx context.Context, clinicID, key string) error {
	if err := validate(clinicID, key); err != nil {
		return err
	}
	e.registry.Reset(key)
	return e.LoadInitial(ctx, clinicID, key)
}

// Snapshot returns a copy of key's state. Unknown keys yield an empty state.
func (e *Engine) Snapshot(key string) Snapshot {
	if snap, ok := e.registry.Lookup(key); ok {
		return snap
	}
	return Snapshot{
		Key:        key,
		Messages:   []messages.Message{},
		Pagination: Cursor{Page: 1, Limit: e.limit},
	}
}

func (e *Engine) SetActive(key string) {
	e.registry.SetActive(key)
}

func (e *Engine) Active() string {
	return e.registry.Active()
}

func (e *Engine) AnyLoading() bool {
	return e.registry.AnyLoading()
}

func (e *Engine) Conversations() []string {
	return e.registry.Keys()
}

func (e *Engine) fetch(ctx context.Context, direction, clinicID, key string, page, limit int) (messages.Page, error) {
	result, err := e.fetcher.FetchPage(ctx, clinicID, key, page, limit)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.FetchTotal.WithLabelValues(direction, outcome).Inc()

	return result, err
}

// fail records a user-visible error when key is still on screen. The buffer
// is left untouched.
func (e *Engine) fail(c *conversation, reason string, cause error) error {
	err := newError(ErrorFetchFailed, reason, cause)

	if e.registry.mounted(c.key) {
		c.err = err.Error()
		log.Error().Err(cause).Str("conversation_key", c.key).Msg(reason)
	} else {
		log.Warn().Err(cause).Str("conversation_key", c.key).Msg(reason + " for background conversation")
	}
	return err
}

func (e *Engine) observeMerge(direction string, fetched, added int) {
	metrics.MessagesMerged.WithLabelValues(direction).Add(float64(added))
	if dup := fetched - added; dup > 0 {
		metrics.DuplicatesSuppressed.WithLabelValues(direction).Add(float64(dup))
	}
}
