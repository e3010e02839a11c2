package inbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is used when NewPoller is given a non-positive interval.
const DefaultPollInterval = 5 * time.Second

// Poller runs the polling reconciler for watched conversations. Each watched
// key gets its own ticker goroutine; ticks for one key never overlap.
type Poller struct {
	engine   *Engine
	interval time.Duration
	watches  map[string]*watch
	mutex    sync.RWMutex
}

type watch struct {
	clinicID string
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPoller(engine *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		engine:   engine,
		interval: interval,
		watches:  make(map[string]*watch),
	}
}

// Tick performs one reconciliation for key.
func (p *Poller) Tick(ctx context.Context, clinicID, key string) (int, error) {
	return p.engine.PollNew(ctx, clinicID, key)
}

// Watch starts polling key. Watching an already watched key is a no-op.
func (p *Poller) Watch(clinicID, key string) error {
	if err := validate(clinicID, key); err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, exists := p.watches[key]; exists {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		clinicID: clinicID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	p.watches[key] = w

	go p.run(ctx, w, key)

	log.Info().
		Str("conversation_key", key).
		Dur("interval", p.interval).
		Msg("Started polling conversation")
	return nil
}

func (p *Poller) run(ctx context.Context, w *watch, key string) {
	defer close(w.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Tick(ctx, w.clinicID, key); err != nil {
				log.Warn().Err(err).Str("conversation_key", key).Msg("Poll tick rejected")
			}
		}
	}
}

// Unwatch stops polling key and waits for a running tick to finish.
func (p *Poller) Unwatch(key string) {
	p.mutex.Lock()
	w, exists := p.watches[key]
	if exists {
		delete(p.watches, key)
	}
	p.mutex.Unlock()

	if !exists {
		return
	}

	w.cancel()
	<-w.done

	log.Info().Str("conversation_key", key).Msg("Stopped polling conversation")
}

// Stop cancels every watch.
func (p *Poller) Stop() {
	for _, key := range p.Watched() {
		p.Unwatch(key)
	}
}

func (p *Poller) Watched() []string {
	p.mutex.RLock()
	keys := make([]string, 0, len(p.watches))
	for k := range p.watches {
		keys = append(keys, k)
	}
	p.mutex.RUnlock()

	sort.Strings(keys)
	return keys
}

// ActiveCount returns the number of watched conversations.
func (p *Poller) ActiveCount() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.watches)
}
