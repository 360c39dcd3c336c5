package engine

import (
	"context"
	"encoding/json"

	"github.com/signalworks/sibyl/internal/signals"
)

// TurnEvent is the NATS payload for an inbound conversation turn.
type TurnEvent struct {
	ConversationID string                     `json:"conversation_id"`
	TurnText       string                     `json:"turn_text"`
	Behavioral     *signals.BehavioralPayload `json:"behavioral"`
}

// EndedEvent is the NATS payload for an explicit conversation end.
type EndedEvent struct {
	ConversationID string `json:"conversation_id"`
}

// HandleTurnEvent is the NATS handler for leads.conversation.turn.
func (e *Engine) HandleTurnEvent(subject string, data []byte) {
	ctx := context.Background()

	var evt TurnEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		e.logger.Error("failed to parse turn event", "error", err)
		return
	}
	if evt.ConversationID == "" {
		e.logger.Error("turn event missing conversation_id")
		return
	}

	e.ProcessTurn(ctx, evt.ConversationID, evt.TurnText, evt.Behavioral)
}

// HandleConversationEnded is the NATS handler for leads.conversation.ended.
func (e *Engine) HandleConversationEnded(subject string, data []byte) {
	ctx := context.Background()

	var evt EndedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		e.logger.Error("failed to parse ended event", "error", err)
		return
	}

	if _, err := e.EndConversation(ctx, evt.ConversationID); err != nil {
		e.logger.Warn("conversation end skipped", "conversation_id", evt.ConversationID, "error", err)
	}
}
