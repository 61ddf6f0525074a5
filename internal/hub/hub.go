package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/dto"
	"stop-game/internal/repository"
	"stop-game/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// 单个客户端发送缓冲
	sendBufferSize = 256

	// 处理单条客户端消息的超时
	actionTimeout = 15 * time.Second
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "action"
	Client  *Client
	RawData []byte // 仅用于 action
}

// RoomActions 是 Hub 转发客户端消息所需的房间操作
type RoomActions interface {
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
	StartRound(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error)
	SubmitAnswers(ctx context.Context, code string, playerID uuid.UUID, answers map[uuid.UUID]string) error
	StopRound(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error)
	CastVotes(ctx context.Context, code string, voterID uuid.UUID, votes []service.VoteInput) (*domain.Room, error)
	FinishVotingPhase(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error)
	SendChat(ctx context.Context, code string, playerID uuid.UUID, message string) error
	LeaveRoom(ctx context.Context, code string, playerID uuid.UUID) error
	Disconnect(ctx context.Context, connectionID string) error
}

// Hub 维护本进程的客户端集合，并通过 Redis Pub/Sub 把房间事件分发给所有进程的客户端。
// 同时实现 service.Notifier。
type Hub struct {
	messageChan chan HubMessage

	// map[roomCode]map[*Client]bool
	rooms   map[string]map[*Client]bool
	subs    map[string]context.CancelFunc
	roomsMu sync.RWMutex

	bus     repository.EventBus
	actions RoomActions

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub 创建 Hub。RoomActions 需在 Run 之前通过 SetRoomActions 注入。
func NewHub(bus repository.EventBus) *Hub {
	if bus == nil {
		panic("EventBus cannot be nil for Hub")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]context.CancelFunc),
		bus:         bus,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetRoomActions 注入房间服务。RoomService 依赖 Hub 作为 Notifier，因此不能在构造时传入。
func (h *Hub) SetRoomActions(actions RoomActions) {
	if actions == nil {
		panic("RoomActions cannot be nil for Hub")
	}
	h.actions = actions
}

// Broadcast 实现 service.Notifier：编码事件并发布到房间频道
func (h *Hub) Broadcast(ctx context.Context, roomCode, event string, payload interface{}) error {
	data, err := json.Marshal(dto.ServerEvent{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	return h.bus.PublishRoomEvent(ctx, roomCode, data)
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "action":
			// 玩家动作之间没有顺序要求，房间一致性由服务层的锁保证
			go h.handleClientAction(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := client.logger().WithField("action", "registerClient")

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomCode]; !ok {
		h.rooms[client.roomCode] = make(map[*Client]bool)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[client.roomCode][client] = true
	needsSubscription := h.subs[client.roomCode] == nil
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	if needsSubscription {
		if err := h.subscribe(client.roomCode); err != nil {
			logCtx.WithError(err).Error("Failed to subscribe to room events")
		}
	}

	go h.sendInitialRoom(client)
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := client.logger().WithField("action", "unregisterClient")

	h.roomsMu.Lock()
	roomClients, roomExists := h.rooms[client.roomCode]
	if !roomExists || !roomClients[client] {
		h.roomsMu.Unlock()
		logCtx.Debug("Client already unregistered")
		return
	}
	delete(roomClients, client)
	client.closeSend()
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomCode)
		if cancel, ok := h.subs[client.roomCode]; ok {
			cancel()
			delete(h.subs, client.roomCode)
		}
		logCtx.Info("Room empty, removed from Hub")
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")

	if h.actions == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := h.actions.Disconnect(ctx, client.connectionID); err != nil {
			logCtx.WithError(err).Warn("Failed to mark player disconnected")
		}
	}()
}

// subscribe 为房间建立 Redis 订阅，并把收到的事件转发给本地客户端
func (h *Hub) subscribe(code string) error {
	ctx, cancel := context.WithCancel(h.ctx)
	events, closeFn, err := h.bus.SubscribeRoomEvents(ctx, code)
	if err != nil {
		cancel()
		return err
	}

	h.roomsMu.Lock()
	if _, stillActive := h.rooms[code]; !stillActive {
		h.roomsMu.Unlock()
		cancel()
		_ = closeFn()
		return nil
	}
	h.subs[code] = cancel
	h.roomsMu.Unlock()

	go func() {
		for data := range events {
			h.fanOut(code, data)
		}
		logrus.WithField("room_code", code).Debug("Room event subscription closed")
	}()
	logrus.WithField("room_code", code).Info("Subscribed to room events")
	return nil
}

// sendInitialRoom 新连接注册后立即推送一次房间快照
func (h *Hub) sendInitialRoom(client *Client) {
	if h.actions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	room, err := h.actions.GetRoom(ctx, client.roomCode)
	if err != nil {
		client.logger().WithError(err).Warn("Failed to load room for new client")
		h.sendError(client, "", err)
		return
	}
	data, err := json.Marshal(dto.ServerEvent{
		Event:   service.EventRoomUpdated,
		Payload: service.NewRoomView(room, time.Now()),
	})
	if err != nil {
		client.logger().WithError(err).Error("Failed to marshal initial room")
		return
	}
	h.deliver(client, data)
}

// fanOut 把事件发送给本进程内该房间的所有客户端
func (h *Hub) fanOut(code string, message []byte) {
	h.roomsMu.RLock()
	roomClients := h.rooms[code]
	recipients := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		recipients = append(recipients, client)
	}
	h.roomsMu.RUnlock()

	if len(recipients) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"room_code":       code,
		"message_size":    len(message),
		"recipient_count": len(recipients),
	}).Debug("Broadcasting message to clients")

	for _, client := range recipients {
		h.deliver(client, message)
	}
}

// deliver 非阻塞发送，慢客户端的消息会被丢弃
func (h *Hub) deliver(client *Client, message []byte) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if !h.rooms[client.roomCode][client] {
		return
	}
	select {
	case client.send <- message:
	default:
		client.logger().Warn("Client send channel full, message dropped")
	}
}

func (h *Hub) sendError(client *Client, request string, err error) {
	message := "internal error"
	if service.IsClientError(err) {
		message = err.Error()
	}
	data, marshalErr := json.Marshal(dto.ErrorDTO{Event: dto.EventError, Request: request, Message: message})
	if marshalErr != nil {
		return
	}
	h.deliver(client, data)
}

// --- 公共方法 ---

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)，队列已满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		fields := logrus.Fields{"message_type": msg.Type}
		if msg.Client != nil {
			fields["room_code"] = msg.Client.roomCode
			fields["player_id"] = msg.Client.playerID
		}
		logrus.WithFields(fields).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ClientCount 返回本进程内某房间的连接数
func (h *Hub) ClientCount(code string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[code])
}

// StopAllSubscriptions 关闭所有房间订阅，用于优雅关闭
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	for code, cancel := range h.subs {
		cancel()
		delete(h.subs, code)
	}
	h.roomsMu.Unlock()
	h.cancel()
	logrus.Info("Hub: all room subscriptions stopped")
}
