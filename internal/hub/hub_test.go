package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stop-game/internal/domain"
	"stop-game/internal/dto"
	redisstate "stop-game/internal/infra/state/redis"
	"stop-game/internal/service"
)

// fakeActions 记录 Hub 转发的调用
type fakeActions struct {
	mu           sync.Mutex
	room         *domain.Room
	chats        []string
	votes        []service.VoteInput
	disconnected []string
	left         []uuid.UUID
	startErr     error
}

func (f *fakeActions) GetRoom(_ context.Context, code string) (*domain.Room, error) {
	if f.room == nil || f.room.Code != code {
		return nil, domain.ErrRoomNotFound
	}
	return f.room, nil
}

func (f *fakeActions) StartRound(context.Context, string, uuid.UUID) (*domain.Room, error) {
	return f.room, f.startErr
}

func (f *fakeActions) SubmitAnswers(context.Context, string, uuid.UUID, map[uuid.UUID]string) error {
	return nil
}

func (f *fakeActions) StopRound(context.Context, string, uuid.UUID) (*domain.Room, error) {
	return f.room, nil
}

func (f *fakeActions) CastVotes(_ context.Context, _ string, _ uuid.UUID, votes []service.VoteInput) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = append(f.votes, votes...)
	return f.room, nil
}

func (f *fakeActions) FinishVotingPhase(context.Context, string, uuid.UUID) (*domain.Room, error) {
	return f.room, nil
}

func (f *fakeActions) SendChat(_ context.Context, _ string, _ uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, message)
	return nil
}

func (f *fakeActions) LeaveRoom(_ context.Context, _ string, playerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, playerID)
	return nil
}

func (f *fakeActions) Disconnect(_ context.Context, connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, connectionID)
	return nil
}

func setupHub(t *testing.T) (*Hub, *fakeActions) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHub(redisstate.NewRedisStateRepository(client, "test:"))
	t.Cleanup(h.StopAllSubscriptions)

	now := time.Now()
	room := domain.NewRoom("ABC123", domain.DefaultSettings(), time.Hour, now)
	actions := &fakeActions{room: room}
	h.SetRoomActions(actions)
	return h, actions
}

// waitForEvent 读取客户端发送队列直到出现指定事件
func waitForEvent(t *testing.T, c *Client, event string) map[string]json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-c.send:
			require.True(t, ok, "send 通道不应在等待事件 %s 时关闭", event)
			var msg map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(data, &msg))
			var name string
			require.NoError(t, json.Unmarshal(msg["event"], &name))
			if name == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("等待事件 %s 超时", event)
			return nil
		}
	}
}

func TestHub_RegisterSendsInitialRoomAndReceivesBroadcasts(t *testing.T) {
	// Arrange
	h, _ := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")

	// Act
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)
	err := h.Broadcast(context.Background(), "ABC123", service.EventChatNotification, service.ChatPayload{Message: "hello"})

	// Assert
	require.NoError(t, err)
	msg := waitForEvent(t, c, service.EventChatNotification)
	var payload service.ChatPayload
	require.NoError(t, json.Unmarshal(msg["payload"], &payload))
	assert.Equal(t, "hello", payload.Message, "广播内容应原样送达")
	assert.Equal(t, 1, h.ClientCount("ABC123"))
}

func TestHub_BroadcastDoesNotLeakAcrossRooms(t *testing.T) {
	h, _ := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)

	require.NoError(t, h.Broadcast(context.Background(), "ZZZ999", service.EventChatNotification, service.ChatPayload{Message: "other"}))

	select {
	case data := <-c.send:
		t.Fatalf("不应收到其他房间的事件: %s", data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendAndMarksDisconnected(t *testing.T) {
	h, actions := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)

	h.unregisterClient(c)

	_, ok := <-c.send
	assert.False(t, ok, "注销后 send 通道应关闭")
	assert.Equal(t, 0, h.ClientCount("ABC123"))
	assert.Eventually(t, func() bool {
		actions.mu.Lock()
		defer actions.mu.Unlock()
		return len(actions.disconnected) == 1 && actions.disconnected[0] == "conn-1"
	}, time.Second, 10*time.Millisecond, "注销应标记玩家离线")

	// 重复注销无副作用
	h.unregisterClient(c)
}

func TestHub_ChatActionIsRouted(t *testing.T) {
	h, actions := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)

	h.handleClientAction(HubMessage{Type: "action", Client: c, RawData: []byte(`{"type":"chat","payload":{"message":"hi all"}}`)})

	actions.mu.Lock()
	defer actions.mu.Unlock()
	assert.Equal(t, []string{"hi all"}, actions.chats)
}

func TestHub_CastVotesActionConvertsPayload(t *testing.T) {
	h, actions := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)
	answerID := uuid.New()

	raw, err := json.Marshal(dto.ClientMessage{
		Type:    dto.MessageCastVotes,
		Payload: json.RawMessage(`{"votes":[{"answer_id":"` + answerID.String() + `","is_valid":false}]}`),
	})
	require.NoError(t, err)
	h.handleClientAction(HubMessage{Type: "action", Client: c, RawData: raw})

	actions.mu.Lock()
	defer actions.mu.Unlock()
	require.Len(t, actions.votes, 1)
	assert.Equal(t, answerID, actions.votes[0].AnswerID)
	assert.False(t, actions.votes[0].IsValid)
}

func TestHub_InvalidActionRepliesWithError(t *testing.T) {
	h, _ := setupHub(t)
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)

	h.handleClientAction(HubMessage{Type: "action", Client: c, RawData: []byte(`{"type":"dance"}`)})

	msg := waitForEvent(t, c, dto.EventError)
	assert.Contains(t, string(msg["message"]), "validation failed")
}

func TestHub_ServiceErrorIsReportedToSender(t *testing.T) {
	h, actions := setupHub(t)
	actions.startErr = domain.ErrNotHost
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	h.registerClient(c)
	waitForEvent(t, c, service.EventRoomUpdated)

	h.handleClientAction(HubMessage{Type: "action", Client: c, RawData: []byte(`{"type":"start_round"}`)})

	msg := waitForEvent(t, c, dto.EventError)
	var request string
	require.NoError(t, json.Unmarshal(msg["request"], &request))
	assert.Equal(t, dto.MessageStartRound, request)
}

func TestHub_LeaveActionUnregistersClient(t *testing.T) {
	h, actions := setupHub(t)
	go h.Run()
	c := NewClient(h, nil, "ABC123", uuid.New(), "conn-1")
	require.True(t, h.QueueMessage(HubMessage{Type: "register", Client: c}))
	waitForEvent(t, c, service.EventRoomUpdated)

	h.handleClientAction(HubMessage{Type: "action", Client: c, RawData: []byte(`{"type":"leave"}`)})

	assert.Eventually(t, func() bool { return h.ClientCount("ABC123") == 0 }, time.Second, 10*time.Millisecond)
	actions.mu.Lock()
	defer actions.mu.Unlock()
	assert.Equal(t, []uuid.UUID{c.playerID}, actions.left)
}
