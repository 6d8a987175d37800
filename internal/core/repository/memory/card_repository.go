package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository"
)

type memoryCardRepo struct {
	mu    sync.RWMutex
	cards map[string]models.Card

	// one entry per card number that has a holder or waiters; holding the
	// slot is holding the row lock
	lockMu sync.Mutex
	locks  map[string]*cardLock
	log    logger.Logger
	now    func() time.Time
}

type cardLock struct {
	slot chan struct{}
	refs int
}

func NewCardRepo(log logger.Logger) repository.CardRepository {
	return &memoryCardRepo{
		cards: make(map[string]models.Card),
		locks: make(map[string]*cardLock),
		log:   log,
		now:   time.Now,
	}
}

func (r *memoryCardRepo) Find(ctx context.Context, number string) (*models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	card, ok := r.cards[number]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrCardNotFound, number)
	}
	return &card, nil
}

func (r *memoryCardRepo) Save(ctx context.Context, card *models.Card) error {
	return r.WithTransaction(ctx, func(ctx context.Context, tx repository.CardTx) error {
		return tx.Save(ctx, card)
	})
}

func (r *memoryCardRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *memoryCardRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.CardTx) error) error {
	tx := &memoryCardTx{
		repo:   r,
		held:   make(map[string]*cardLock),
		staged: make(map[string]models.Card),
	}
	// runs on panic too
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		r.log.Debug("Transaction rolled back", logger.ErrorField("error", err))
		return err
	}

	if err := ctx.Err(); err != nil {
		r.log.Warn("Transaction rolled back due to cancellation", logger.ErrorField("error", err))
		return err
	}

	return r.commit(tx.staged)
}

// acquireRef registers interest in the lock for number. Every call must be
// paired with dropRef.
func (r *memoryCardRepo) acquireRef(number string) *cardLock {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	lock, ok := r.locks[number]
	if !ok {
		lock = &cardLock{slot: make(chan struct{}, 1)}
		r.locks[number] = lock
	}
	lock.refs++
	return lock
}

func (r *memoryCardRepo) dropRef(number string, lock *cardLock) {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, number)
	}
}

// commit validates every staged card against the committed state before
// applying any of them.
func (r *memoryCardRepo) commit(staged map[string]models.Card) error {
	if len(staged) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for number, card := range staged {
		current, exists := r.cards[number]
		expected := card.Version - 1
		switch {
		case expected == 0 && exists:
			return fmt.Errorf("%w: %s", repository.ErrCardExists, number)
		case expected > 0 && (!exists || current.Version != expected):
			return fmt.Errorf("%w: %s", repository.ErrVersionConflict, number)
		}
	}

	for number, card := range staged {
		r.cards[number] = card
	}
	return nil
}

type memoryCardTx struct {
	repo   *memoryCardRepo
	held   map[string]*cardLock
	staged map[string]models.Card
}

func (tx *memoryCardTx) FindForUpdate(ctx context.Context, number string) (*models.Card, error) {
	if _, ok := tx.held[number]; !ok {
		lock := tx.repo.acquireRef(number)
		select {
		case lock.slot <- struct{}{}:
			tx.held[number] = lock
		case <-ctx.Done():
			tx.repo.dropRef(number, lock)
			return nil, ctx.Err()
		}
	}

	if card, ok := tx.staged[number]; ok {
		return &card, nil
	}
	return tx.repo.Find(ctx, number)
}

func (tx *memoryCardTx) Save(ctx context.Context, card *models.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, exists := tx.staged[card.Number]
	if !exists {
		tx.repo.mu.RLock()
		current, exists = tx.repo.cards[card.Number]
		tx.repo.mu.RUnlock()
	}

	if card.Version == 0 && exists {
		return fmt.Errorf("%w: %s", repository.ErrCardExists, card.Number)
	}
	if card.Version > 0 && (!exists || current.Version != card.Version) {
		return fmt.Errorf("%w: %s", repository.ErrVersionConflict, card.Number)
	}

	now := tx.repo.now()
	if card.Version == 0 {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	card.Version++

	tx.staged[card.Number] = *card
	return nil
}

func (tx *memoryCardTx) release() {
	for number, lock := range tx.held {
		<-lock.slot
		tx.repo.dropRef(number, lock)
		delete(tx.held, number)
	}
}
