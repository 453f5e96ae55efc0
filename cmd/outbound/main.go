package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/cmd/bootstrap"
	"github.com/voicebridge-ai/voicebridge/internal/models"
	"github.com/voicebridge-ai/voicebridge/pkg/config"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// dispatchRequest asks the media server to create a room, dial the SIP
// participant, and dispatch an agent job for it.
type dispatchRequest struct {
	Event    string       `json:"event"`
	Room     string       `json:"room"`
	Metadata string       `json:"metadata"`
	SIP      *sipOutbound `json:"sip,omitempty"`
}

type sipOutbound struct {
	TrunkID     string `json:"trunkId"`
	PhoneNumber string `json:"phoneNumber"`
}

type dispatchResponse struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	phone := flag.String("phone", "", "phone number to call, E.164 format")
	chatBotID := flag.Uint("chatbot", 0, "chat bot id that drives the call")
	roomName := flag.String("room", "", "room name (default outbound-<uuid>)")
	voice := flag.String("voice", "", "voice override")
	llmName := flag.String("llm", "", "model override")
	customPrompt := flag.String("prompt", "", "custom prompt override")
	flag.Parse()

	if *phone == "" || *chatBotID == 0 {
		fmt.Fprintln(os.Stderr, "usage: outbound -phone +15550001111 -chatbot 3 [-room name] [-voice v] [-llm m]")
		os.Exit(2)
	}

	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig

	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		panic(err)
	}

	if !strings.HasPrefix(cfg.SIPOutboundTrunkID, "ST_") {
		logger.Error("SIP_OUTBOUND_TRUNK_ID is missing or malformed, expected ST_ prefix",
			zap.String("trunkID", cfg.SIPOutboundTrunkID))
		os.Exit(1)
	}

	db, err := bootstrap.SetupDatabase(&bootstrap.Options{AutoMigrate: false})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		os.Exit(1)
	}

	chatBot, err := models.GetChatBotByID(db, *chatBotID)
	if err != nil {
		logger.Error("chat bot not found", zap.Uint("chatBotID", *chatBotID), zap.Error(err))
		os.Exit(1)
	}

	environment := strings.ToLower(strings.TrimSpace(chatBot.Environment))
	if environment == "" {
		environment = "groq"
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"userSessionId":   "0",
		"conversationId":  fmt.Sprintf("%d", chatBot.ChatBotID),
		"knowledgebaseId": chatBot.ChatBotID,
		"customerId":      chatBot.CustomerID,
		"voice":           *voice,
		"enableStream":    true,
		"llmName":         *llmName,
		"namespace":       chatBot.Namespace,
		"indexName":       chatBot.IndexName,
		"customPrompt":    *customPrompt,
		"environment":     environment,
		"isoutBoundCall":  true,
	})
	if err != nil {
		logger.Error("failed to encode metadata", zap.Error(err))
		os.Exit(1)
	}

	name := *roomName
	if name == "" {
		name = "outbound-" + uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	created, err := dispatchCall(ctx, cfg, dispatchRequest{
		Event:    "create_call",
		Room:     name,
		Metadata: string(metadata),
		SIP: &sipOutbound{
			TrunkID:     cfg.SIPOutboundTrunkID,
			PhoneNumber: *phone,
		},
	})
	if err != nil {
		logger.Error("outbound dispatch failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Outbound call dispatched",
		zap.String("room", created),
		zap.String("phone", *phone),
		zap.Uint("chatBotID", *chatBotID))
	fmt.Println(created)
}

func dispatchCall(ctx context.Context, cfg *config.Config, req dispatchRequest) (string, error) {
	header := http.Header{}
	header.Set("X-Api-Key", cfg.RoomAPIKey)
	header.Set("X-Api-Secret", cfg.RoomAPISecret)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.RoomURL+"/dispatch", header)
	if err != nil {
		return "", fmt.Errorf("failed to dial dispatcher: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("failed to send dispatch request: %w", err)
	}
	var resp dispatchResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return "", fmt.Errorf("failed to read dispatch response: %w", err)
	}
	if resp.Event != "created" {
		return "", fmt.Errorf("dispatch rejected %q: %s", resp.Event, resp.Error)
	}
	if resp.Room == "" {
		resp.Room = req.Room
	}
	return resp.Room, nil
}
