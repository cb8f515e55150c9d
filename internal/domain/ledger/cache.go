package ledger

import "time"

const DefaultCategoriesTTL = 5 * time.Minute

// CategoriesCache holds the category list per viewer; categories change
// rarely and every expense form needs them.
type CategoriesCache interface {
	GetByUserID(userID string) ([]Category, bool)
	SetByUserID(userID string, categories []Category, ttl time.Duration)
	DeleteByUserID(userID string)
}

type noopCategoriesCache struct{}

func (noopCategoriesCache) GetByUserID(string) ([]Category, bool) {
	return nil, false
}

func (noopCategoriesCache) SetByUserID(string, []Category, time.Duration) {}

func (noopCategoriesCache) DeleteByUserID(string) {}
