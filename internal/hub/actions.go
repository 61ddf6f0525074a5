package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin/binding"

	"stop-game/internal/dto"
	"stop-game/internal/service"
)

// handleClientAction 解析客户端消息并调用对应的房间操作。
// 成功结果通过房间广播送达，失败只回复给发送者。
func (h *Hub) handleClientAction(msg HubMessage) {
	client := msg.Client
	if client == nil || h.actions == nil {
		return
	}
	logCtx := client.logger().WithField("operation", "handleClientAction")

	var in dto.ClientMessage
	if err := json.Unmarshal(msg.RawData, &in); err != nil {
		logCtx.WithError(err).Debug("Malformed client message")
		h.sendError(client, "", fmt.Errorf("%w: malformed message", service.ErrValidation))
		return
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		h.sendError(client, in.Type, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}
	logCtx = logCtx.WithField("message_type", in.Type)

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if err := h.dispatch(ctx, client, in); err != nil {
		if service.IsClientError(err) {
			logCtx.WithError(err).Debug("Client action rejected")
		} else {
			logCtx.WithError(err).Error("Error processing client action")
		}
		h.sendError(client, in.Type, err)
		return
	}
	logCtx.Debug("Client action processed")
}

func (h *Hub) dispatch(ctx context.Context, client *Client, in dto.ClientMessage) error {
	code, playerID := client.roomCode, client.playerID

	switch in.Type {
	case dto.MessageChat:
		var body dto.ChatMessage
		if err := decodePayload(in.Payload, &body); err != nil {
			return err
		}
		return h.actions.SendChat(ctx, code, playerID, body.Message)

	case dto.MessageStartRound:
		_, err := h.actions.StartRound(ctx, code, playerID)
		return err

	case dto.MessageSubmitAnswers:
		var body dto.SubmitAnswersMessage
		if err := decodePayload(in.Payload, &body); err != nil {
			return err
		}
		return h.actions.SubmitAnswers(ctx, code, playerID, body.Answers)

	case dto.MessageStopRound:
		_, err := h.actions.StopRound(ctx, code, playerID)
		return err

	case dto.MessageCastVotes:
		var body dto.CastVotesMessage
		if err := decodePayload(in.Payload, &body); err != nil {
			return err
		}
		_, err := h.actions.CastVotes(ctx, code, playerID, dto.ToVoteInputs(body.Votes))
		return err

	case dto.MessageFinishVoting:
		_, err := h.actions.FinishVotingPhase(ctx, code, playerID)
		return err

	case dto.MessageLeave:
		if err := h.actions.LeaveRoom(ctx, code, playerID); err != nil {
			return err
		}
		h.QueueMessage(HubMessage{Type: "unregister", Client: client})
		return nil
	}
	return fmt.Errorf("%w: unsupported message type %q", service.ErrValidation, in.Type)
}

func decodePayload(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", service.ErrValidation)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed payload", service.ErrValidation)
	}
	if err := binding.Validator.ValidateStruct(out); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}
