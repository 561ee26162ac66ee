package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"smartfarm-backend/internal/service"

	"go.uber.org/zap"
)

// MessageHandler 私信 + 群聊接口
// - POST /api/messages                        发送私信
// - GET  /api/messages/contacts               可发信联系人
// - GET  /api/messages/conversations          会话列表（最近一条 + 未读数）
// - GET  /api/messages/conversation/{peerID}  与某人的会话（进入即标记已读）
// - GET  /api/messages/unread                 未读总数
// - GET  /api/chat                            群聊历史（?limit=）
// - POST /api/chat                            发群聊消息
type MessageHandler struct {
	messageService *service.MessageService
	chatService    *service.ChatService
	logger         *zap.Logger
}

func NewMessageHandler(messageService *service.MessageService, chatService *service.ChatService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, chatService: chatService, logger: logger}
}

func (h *MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actorID := UserIDFromContext(r.Context())

	if strings.HasPrefix(r.URL.Path, "/api/chat") {
		h.serveChat(w, r, actorID)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/messages"), "/")

	switch {
	case path == "" && r.Method == http.MethodPost:
		h.send(w, r, actorID)
	case path == "contacts" && r.Method == http.MethodGet:
		h.contacts(w, r, actorID)
	case path == "conversations" && r.Method == http.MethodGet:
		h.conversations(w, r, actorID)
	case path == "unread" && r.Method == http.MethodGet:
		h.unread(w, r, actorID)
	case strings.HasPrefix(path, "conversation/") && r.Method == http.MethodGet:
		h.conversation(w, r, actorID, strings.TrimPrefix(path, "conversation/"))
	default:
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	}
}

func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request, actorID string) {
	var req service.SendMessageRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	resp, err := h.messageService.SendMessage(r.Context(), actorID, &req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MessageHandler) contacts(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.messageService.Contacts(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MessageHandler) conversations(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.messageService.Conversations(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MessageHandler) conversation(w http.ResponseWriter, r *http.Request, actorID, peerID string) {
	resp, err := h.messageService.Conversation(r.Context(), actorID, peerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MessageHandler) unread(w http.ResponseWriter, r *http.Request, actorID string) {
	resp, err := h.messageService.UnreadCount(r.Context(), actorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MessageHandler) serveChat(w http.ResponseWriter, r *http.Request, actorID string) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, Fail("invalid limit"))
				return
			}
			limit = n
		}
		resp, err := h.chatService.ChatHistory(r.Context(), limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	case http.MethodPost:
		var req service.PostChatRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		resp, err := h.chatService.PostChat(r.Context(), actorID, &req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	}
}
