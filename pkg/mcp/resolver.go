package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/cache"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

const (
	urlCacheTTL         = 5 * time.Minute
	customerKeyPrefix   = "mcp:customer:"
	sharedChatbotKeyFmt = "mcp:shared:%d:%d:%s"
	customerCacheKeyFmt = customerKeyPrefix + "%d"
)

// Resolver looks up which MCP servers a session may attach, combining
// the customer's own integrations with those shared to the chatbot.
// Both lookups are cached since they run on every call setup.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func customerCacheKey(customerID uint) string {
	return fmt.Sprintf(customerCacheKeyFmt, customerID)
}

func sharedChatbotCacheKey(customerID, chatBotID uint, uuid string) string {
	return fmt.Sprintf(sharedChatbotKeyFmt, customerID, chatBotID, uuid)
}

func cachedURLs(ctx context.Context, key string) ([]string, bool) {
	cached, ok := cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	encoded, ok := cached.(string)
	if !ok {
		return nil, false
	}
	var urls []string
	if err := json.Unmarshal([]byte(encoded), &urls); err != nil {
		return nil, false
	}
	return urls, true
}

func storeURLs(ctx context.Context, key string, urls []string) {
	encoded, err := json.Marshal(urls)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, string(encoded), urlCacheTTL); err != nil {
		logger.Warn("Failed to cache MCP server URLs",
			zap.String("key", key),
			zap.Error(err))
	}
}

// GetCustomerServerURLs returns the customer's own enabled integrations.
func (r *Resolver) GetCustomerServerURLs(ctx context.Context, customerID uint) ([]string, error) {
	key := customerCacheKey(customerID)
	if urls, ok := cachedURLs(ctx, key); ok {
		return urls, nil
	}
	urls, err := models.FetchCustomerMCPServerURLs(r.db, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer MCP servers: %w", err)
	}
	storeURLs(ctx, key, urls)
	return urls, nil
}

// GetSharedChatbotServerURLs returns integrations granted to a shared
// chatbot link, identified by its share uuid.
func (r *Resolver) GetSharedChatbotServerURLs(ctx context.Context, customerID, chatBotID uint, uuid string) ([]string, error) {
	key := sharedChatbotCacheKey(customerID, chatBotID, uuid)
	if urls, ok := cachedURLs(ctx, key); ok {
		return urls, nil
	}
	urls, err := models.FetchSharedChatbotMCPServerURLs(r.db, customerID, chatBotID, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shared MCP servers: %w", err)
	}
	storeURLs(ctx, key, urls)
	return urls, nil
}

// GetMCPServerURLs returns the deduplicated server URLs for the session.
// uuid identifies the shared chatbot link; calls without one only see
// the customer's own integrations.
func (r *Resolver) GetMCPServerURLs(ctx context.Context, customerID, chatBotID uint, uuid string) ([]string, error) {
	own, err := r.GetCustomerServerURLs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	var shared []string
	if uuid != "" {
		shared, err = r.GetSharedChatbotServerURLs(ctx, customerID, chatBotID, uuid)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	urls := make([]string, 0, len(own)+len(shared))
	for _, url := range append(own, shared...) {
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, url)
	}
	return urls, nil
}

// ClearCustomerCache drops the cached URL set for one customer. Call
// after enabling or revoking an integration.
func (r *Resolver) ClearCustomerCache(ctx context.Context, customerID uint) error {
	return cache.Delete(ctx, customerCacheKey(customerID))
}

// ClearSharedChatbotCache drops the cached grants for one share link.
func (r *Resolver) ClearSharedChatbotCache(ctx context.Context, customerID, chatBotID uint, uuid string) error {
	return cache.Delete(ctx, sharedChatbotCacheKey(customerID, chatBotID, uuid))
}

// ClearAll drops every cached MCP entry.
func (r *Resolver) ClearAll(ctx context.Context) error {
	return cache.Clear(ctx)
}
