package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nayon117/custome-chat-server/internal/audit"
	"github.com/nayon117/custome-chat-server/internal/config"
	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/internal/hub"
	"github.com/nayon117/custome-chat-server/internal/service"
	"github.com/nayon117/custome-chat-server/pkg/log"
)

const identityQueryParam = "userId"

type WSHandler struct {
	hub      *hub.Hub
	service  service.RelayService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, svc service.RelayService, wsCfg config.WebSocketConfig, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker admits requests with no Origin header (non-browser clients)
// and browser requests whose origin is on the allowlist. "*" allows any.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades the connection and binds it to the identity
// carried in the userId query parameter. The binding is permanent for the
// connection's lifetime.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get(identityQueryParam)
	if identity == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn, h.wsCfg)

	h.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleMessage)
		audit.Log(context.Background(), audit.ActionDisconnect, identity, "client disconnected")
	}()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage("Invalid message format"))
		return
	}

	ctx := context.Background()
	l := log.L()

	switch base.Type {
	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage("Invalid sendMessage payload"))
			return
		}
		if err := h.service.HandleSendMessage(ctx, client, msg.Content); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("sendMessage failed")
		}

	case domain.MsgTypeAdminReply:
		var msg domain.AdminReplyWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage("Invalid adminReply payload"))
			return
		}
		if err := h.service.HandleAdminReply(ctx, client, msg.UserID, msg.Content); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("adminReply failed")
		}

	case domain.MsgTypeGetHistory:
		if err := h.service.HandleGetHistory(ctx, client); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("getHistory failed")
		}

	case domain.MsgTypeGetAllMessages:
		if err := h.service.HandleGetAllMessages(ctx, client); err != nil {
			l.Warn().Err(err).Str(log.FieldClientID, client.ID).Msg("getAllMessages failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage("Unknown message type"))
	}
}
