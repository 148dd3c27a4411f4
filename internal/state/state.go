package state

import (
	"sync"
	"time"
)

// Step — шаг диалога покупки
type Step string

const (
	StepNone             Step = ""
	StepAwaitingStarQty  Step = "waiting_for_star_count"
	StepAwaitingStarLink Step = "waiting_for_star_link"
	StepAwaitingSubQty   Step = "waiting_for_sub_count"
	StepAwaitingSubLink  Step = "waiting_for_sub_link"
)

// Conversation — текущее положение пользователя в многошаговом сценарии.
// Quantity заполняется после шага ввода количества.
type Conversation struct {
	Step     Step
	Quantity int
}

// Store держит состояния диалогов в памяти процесса, по одному на
// пользователя. Новый сценарий всегда перетирает незавершённый старый.
type Store struct {
	mu     sync.Mutex
	states map[int64]Conversation
}

func NewStore() *Store {
	return &Store{states: make(map[int64]Conversation)}
}

func (s *Store) Get(userID int64) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.states[userID]
	return c, ok
}

func (s *Store) Set(userID int64, c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = c
}

func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

type pending struct {
	referrerID int64
	createdAt  time.Time
}

// PendingReferrals хранит id пригласившего, пойманный из /start до прохождения
// проверки подписки. Запись потребляется ровно один раз.
type PendingReferrals struct {
	mu      sync.Mutex
	entries map[int64]pending
}

func NewPendingReferrals() *PendingReferrals {
	return &PendingReferrals{entries: make(map[int64]pending)}
}

func (p *PendingReferrals) Put(newUserID, referrerID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[newUserID] = pending{referrerID: referrerID, createdAt: time.Now()}
}

// Take возвращает и удаляет запись: повторный вызов для того же
// пользователя отдаёт 0.
func (p *PendingReferrals) Take(newUserID int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[newUserID]
	if !ok {
		return 0
	}
	delete(p.entries, newUserID)
	return e.referrerID
}

// Sweep удаляет записи старше maxAge и возвращает их число
func (p *PendingReferrals) Sweep(maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, e := range p.entries {
		if e.createdAt.Before(cutoff) {
			delete(p.entries, id)
			removed++
		}
	}
	return removed
}
