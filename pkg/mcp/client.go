package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/llm"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// ToolBridge holds the live MCP connections backing registered tools.
// Close it when the session ends.
type ToolBridge struct {
	clients []*client.Client
}

func (b *ToolBridge) Close() {
	for _, c := range b.clients {
		if err := c.Close(); err != nil {
			logger.Warn("Failed closing MCP client", zap.Error(err))
		}
	}
	b.clients = nil
}

// ToolCount reports how many connections the bridge holds.
func (b *ToolBridge) ConnectionCount() int {
	return len(b.clients)
}

// AttachMCPTools connects to each server URL, lists its tools, and
// registers them on the provider so the model can call them. Servers
// that fail to connect are skipped rather than failing the session.
func AttachMCPTools(ctx context.Context, provider llm.LLMProvider, serverURLs []string) *ToolBridge {
	bridge := &ToolBridge{}
	for _, serverURL := range serverURLs {
		mcpClient, err := connectClient(ctx, serverURL)
		if err != nil {
			logger.Warn("Skipping unreachable MCP server",
				zap.String("url", serverURL),
				zap.Error(err))
			continue
		}

		toolsResult, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			logger.Warn("Failed listing MCP tools",
				zap.String("url", serverURL),
				zap.Error(err))
			_ = mcpClient.Close()
			continue
		}

		for _, tool := range toolsResult.Tools {
			registerRemoteTool(provider, mcpClient, tool)
		}
		bridge.clients = append(bridge.clients, mcpClient)

		logger.Info("Attached MCP server",
			zap.String("url", serverURL),
			zap.Int("tools", len(toolsResult.Tools)))
	}
	return bridge
}

func connectClient(ctx context.Context, serverURL string) (*client.Client, error) {
	if !strings.HasSuffix(serverURL, "/sse") {
		if !strings.HasSuffix(serverURL, "/") {
			serverURL += "/"
		}
		serverURL += "sse"
	}

	httpTransport, err := transport.NewSSE(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	mcpClient := client.NewClient(httpTransport)
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}
	if _, err := mcpClient.Initialize(ctx, initRequest); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return mcpClient, nil
}

func registerRemoteTool(provider llm.LLMProvider, mcpClient *client.Client, tool mcp.Tool) {
	parameters, err := json.Marshal(tool.InputSchema)
	if err != nil {
		logger.Warn("Failed marshaling tool schema",
			zap.String("tool", tool.Name),
			zap.Error(err))
		return
	}

	toolName := tool.Name
	provider.RegisterFunctionToolDefinition(&llm.FunctionToolDefinition{
		Name:        toolName,
		Description: tool.Description,
		Parameters:  parameters,
		Callback: func(args map[string]interface{}) (string, error) {
			request := mcp.CallToolRequest{}
			request.Params.Name = toolName
			request.Params.Arguments = args

			result, err := mcpClient.CallTool(context.Background(), request)
			if err != nil {
				return "", fmt.Errorf("MCP tool call failed: %w", err)
			}

			var parts []string
			for _, content := range result.Content {
				if textContent, ok := content.(mcp.TextContent); ok {
					parts = append(parts, textContent.Text)
				}
			}
			text := strings.Join(parts, "\n")
			if result.IsError {
				return "", fmt.Errorf("MCP tool returned error: %s", text)
			}
			return text, nil
		},
	})
}
