package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/ragchat/internal/model"
)

// Status reports how the cache participated in answering a query. Unavailable
// means the cache is disabled or failed, as opposed to a lookup that simply
// missed.
type Status string

const (
	StatusHit         Status = "hit"
	StatusMiss        Status = "miss"
	StatusUnavailable Status = "unavailable"
)

// AnswerCache memoizes full answers per user, query and filter combination.
// Any index mutation for a user drops that user's entries wholesale; cached
// answers must never outlive the documents they cite.
type AnswerCache struct {
	lru *expirable.LRU[string, model.AskResult]
}

// New returns a cache of at most size answers with the given TTL. A size of
// zero or less disables caching; every lookup then reports Unavailable.
func New(size int, ttl time.Duration) *AnswerCache {
	if size <= 0 {
		return &AnswerCache{}
	}
	return &AnswerCache{
		lru: expirable.NewLRU[string, model.AskResult](size, nil, ttl),
	}
}

// cacheKey normalizes the query before hashing so "What is X?" and
// " what is x? " land on the same entry.
func cacheKey(userID string, query string, filters model.QueryFilters) string {
	h := sha256.New()
	normalized := strings.ToLower(strings.TrimSpace(query))
	fmt.Fprintf(h, "%s|%s|%s|%d", normalized, filters.Source, filters.Section, filters.Page)
	return userID + "|" + hex.EncodeToString(h.Sum(nil))
}

func userPrefix(userID string) string {
	return userID + "|"
}

// Get looks up a cached answer. The returned status distinguishes a miss
// from a disabled cache.
func (c *AnswerCache) Get(userID string, query string, filters model.QueryFilters) (model.AskResult, Status) {
	if c == nil || c.lru == nil {
		return model.AskResult{}, StatusUnavailable
	}
	result, ok := c.lru.Get(cacheKey(userID, query, filters))
	if !ok {
		return model.AskResult{}, StatusMiss
	}
	result.Cached = true
	return result, StatusHit
}

// Put stores an answered query. Refusals are cacheable too; they are just as
// deterministic as ordinary answers until the index changes.
func (c *AnswerCache) Put(userID string, query string, filters model.QueryFilters, result model.AskResult) {
	if c == nil || c.lru == nil {
		return
	}
	result.Cached = false
	c.lru.Add(cacheKey(userID, query, filters), result)
}

// InvalidateUser drops every cached answer belonging to one user.
func (c *AnswerCache) InvalidateUser(userID string) {
	if c == nil || c.lru == nil {
		return
	}
	prefix := userPrefix(userID)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of live entries, for the health endpoint.
func (c *AnswerCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
