package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/cache"
)

func setupResolverTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ComposioMCPToolIntegration{},
		&models.SharedChatbotMCPIntegration{},
	))
	cache.SetGlobalCache(cache.NewLocalCache(cache.LocalConfig{}))
	return db
}

func TestResolverCombinesAndDeduplicates(t *testing.T) {
	db := setupResolverTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		CustomerID: 7, MCPServerURL: "https://mcp.example.com/a", IsEnabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		ID: 99, CustomerID: 8, MCPServerURL: "https://mcp.example.com/shared", IsEnabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.SharedChatbotMCPIntegration{
		CustomerID: 7, ChatBotID: 3, MCPToolIntegrationID: 99, UUID: "share-1", Status: 1,
	}).Error)

	resolver := NewResolver(db)
	urls, err := resolver.GetMCPServerURLs(ctx, 7, 3, "share-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://mcp.example.com/a",
		"https://mcp.example.com/shared",
	}, urls)
}

func TestResolverCachesResult(t *testing.T) {
	db := setupResolverTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		CustomerID: 7, MCPServerURL: "https://mcp.example.com/a", IsEnabled: true,
	}).Error)

	resolver := NewResolver(db)
	urls, err := resolver.GetMCPServerURLs(ctx, 7, 3, "")
	require.NoError(t, err)
	require.Len(t, urls, 1)

	// A new integration stays invisible until the cache is cleared.
	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		CustomerID: 7, MCPServerURL: "https://mcp.example.com/b", IsEnabled: true,
	}).Error)

	urls, err = resolver.GetMCPServerURLs(ctx, 7, 3, "")
	require.NoError(t, err)
	assert.Len(t, urls, 1)

	require.NoError(t, resolver.ClearCustomerCache(ctx, 7))
	urls, err = resolver.GetMCPServerURLs(ctx, 7, 3, "")
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestResolverSharedCacheInvalidation(t *testing.T) {
	db := setupResolverTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		ID: 50, CustomerID: 9, MCPServerURL: "https://mcp.example.com/x", IsEnabled: true,
	}).Error)

	resolver := NewResolver(db)
	urls, err := resolver.GetSharedChatbotServerURLs(ctx, 7, 3, "share-1")
	require.NoError(t, err)
	assert.Empty(t, urls)

	require.NoError(t, db.Create(&models.SharedChatbotMCPIntegration{
		CustomerID: 7, ChatBotID: 3, MCPToolIntegrationID: 50, UUID: "share-1", Status: 1,
	}).Error)

	// Stale until invalidated.
	urls, err = resolver.GetSharedChatbotServerURLs(ctx, 7, 3, "share-1")
	require.NoError(t, err)
	assert.Empty(t, urls)

	require.NoError(t, resolver.ClearSharedChatbotCache(ctx, 7, 3, "share-1"))
	urls, err = resolver.GetSharedChatbotServerURLs(ctx, 7, 3, "share-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mcp.example.com/x"}, urls)
}

func TestResolverEmpty(t *testing.T) {
	db := setupResolverTest(t)
	resolver := NewResolver(db)
	urls, err := resolver.GetMCPServerURLs(context.Background(), 42, 1, "")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolverSharedCacheIsKeyedPerShareLink(t *testing.T) {
	db := setupResolverTest(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.ComposioMCPToolIntegration{
		ID: 60, CustomerID: 7, MCPServerURL: "https://mcp.example.com/link-a", IsEnabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.SharedChatbotMCPIntegration{
		CustomerID: 7, ChatBotID: 3, MCPToolIntegrationID: 60, UUID: "share-a", Status: 1,
	}).Error)

	resolver := NewResolver(db)
	urls, err := resolver.GetSharedChatbotServerURLs(ctx, 7, 3, "share-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mcp.example.com/link-a"}, urls)

	// A different share link resolves its own grants, not the cached
	// set of the first link.
	urls, err = resolver.GetSharedChatbotServerURLs(ctx, 7, 3, "share-b")
	require.NoError(t, err)
	assert.Empty(t, urls)
}
