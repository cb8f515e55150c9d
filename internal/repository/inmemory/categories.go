package inmemory

import (
	"sync"
	"time"

	"family-ledger-go/internal/domain/ledger"
)

type InMemoryCategoriesCache struct {
	mu    sync.RWMutex
	items map[string]categoriesItem
	now   func() time.Time
}

type categoriesItem struct {
	value     []ledger.Category
	expiresAt time.Time
}

func NewInMemoryCategoriesCache() *InMemoryCategoriesCache {
	return &InMemoryCategoriesCache{
		items: make(map[string]categoriesItem),
		now:   time.Now,
	}
}

func (c *InMemoryCategoriesCache) GetByUserID(userID string) ([]ledger.Category, bool) {
	now := c.now()

	c.mu.RLock()
	item, ok := c.items[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[userID]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, userID)
		}
		c.mu.Unlock()
		return nil, false
	}

	return cloneCategories(item.value), true
}

func (c *InMemoryCategoriesCache) SetByUserID(userID string, categories []ledger.Category, ttl time.Duration) {
	if ttl <= 0 {
		c.DeleteByUserID(userID)
		return
	}

	c.mu.Lock()
	c.items[userID] = categoriesItem{
		value:     cloneCategories(categories),
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *InMemoryCategoriesCache) DeleteByUserID(userID string) {
	c.mu.Lock()
	delete(c.items, userID)
	c.mu.Unlock()
}

func cloneCategories(categories []ledger.Category) []ledger.Category {
	if categories == nil {
		return nil
	}
	return append([]ledger.Category(nil), categories...)
}
