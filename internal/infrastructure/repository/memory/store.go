// Package memory implements the document store contracts in process. One
// mutex guards every collection, so each commit callback is the
// all-or-nothing multi-document write the membership transitions rely on.
// It backs tests and STORE_BACKEND=memory deployments.
package memory

import (
	"sync"

	"github.com/herdsearch/herd-search/internal/domain/area"
	"github.com/herdsearch/herd-search/internal/domain/squad"
	"github.com/herdsearch/herd-search/internal/domain/user"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]user.User
	emailIndex map[string]string
	squads     map[string]squad.Squad
	invites    map[string]squad.Invite
	areas      map[string]area.Area
	areaOrder  []string
	hub        *hub
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]user.User),
		emailIndex: make(map[string]string),
		squads:     make(map[string]squad.Squad),
		invites:    make(map[string]squad.Invite),
		areas:      make(map[string]area.Area),
		hub:        newHub(),
	}
}

func (s *Store) Users() *UserRepository   { return &UserRepository{store: s} }
func (s *Store) Squads() *SquadRepository { return &SquadRepository{store: s} }
func (s *Store) Areas() *AreaRepository   { return &AreaRepository{store: s} }

// commit runs fn under the store mutex and, only when it succeeds, wakes the
// watchers of the topics it touched. fn must leave the maps untouched on
// error so a failed commit is invisible to readers.
func (s *Store) commit(fn func() ([]string, error)) error {
	s.mu.Lock()
	topics, err := fn()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.hub.publish(topics...)
	return nil
}

func (s *Store) read(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

func topicUser(id string) string         { return "user/" + id }
func topicSquad(id string) string        { return "squad/" + id }
func topicInvitesTo(userID string) string { return "invites-to/" + userID }

const topicAreas = "areas"

// hub wakes watch goroutines after commits. Each subscription gets a
// capacity-1 ping channel; pings collapse, the watcher re-reads the full
// snapshot on wake, which is exactly level-triggered delivery.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan struct{})}
}

func (h *hub) subscribe(topic string) (int, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	ping := make(chan struct{}, 1)
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]chan struct{})
	}
	h.subs[topic][id] = ping

	return id, ping
}

func (h *hub) unsubscribe(topic string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[topic], id)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

func (h *hub) publish(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		for _, ping := range h.subs[topic] {
			select {
			case ping <- struct{}{}:
			default:
			}
		}
	}
}

// sendLatest replaces whatever snapshot is still queued on out with v, so a
// slow consumer always reads the newest state instead of a backlog.
func sendLatest[T any](out chan T, v T) {
	for {
		select {
		case out <- v:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
