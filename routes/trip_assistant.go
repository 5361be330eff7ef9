package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pocketbase/pocketbase/core"

	"backend/trips"
)

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tripAssistantRequest struct {
	SessionID string             `json:"sessionId"`
	Messages  []assistantMessage `json:"messages"`
}

type tripAssistantResponse struct {
	Message assistantMessage `json:"message"`
}

type tripAssistantContext struct {
	TripRequestID string             `json:"tripRequestId,omitempty"`
	Summary       *trips.TripSummary `json:"summary,omitempty"`
	Waypoints     []trips.Waypoint   `json:"waypoints,omitempty"`
	Suggestions   []assistantStop    `json:"suggestions,omitempty"`
	Navigation    string             `json:"navigation,omitempty"`
	GeneratedAt   string             `json:"generatedAt"`
}

type assistantStop struct {
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	DistanceOffRoute string `json:"distanceOffRoute,omitempty"`
	Rationale        string `json:"rationale,omitempty"`
}

const assistantModel = "gpt-5-mini"

// TripAssistant answers free-form questions about the planned road
// trip, grounded in the session's current route, stops, and ETA.
func (s *SessionStore) TripAssistant(e *core.RequestEvent) error {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "OPENAI_API_KEY is not configured on the server",
		})
	}

	var req tripAssistantRequest
	if err := json.NewDecoder(e.Request.Body).Decode(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	if len(req.Messages) == 0 {
		return e.JSON(http.StatusBadRequest, map[string]string{
			"error": "at least one message is required",
		})
	}

	session, ok := s.Get(req.SessionID)
	if !ok {
		return e.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown session",
		})
	}

	snap := session.Snapshot()
	ctxJSON, err := json.MarshalIndent(buildAssistantContext(snap), "", "  ")
	if err != nil {
		e.App.Logger().Error("TripAssistant failed to build context", "error", err, "sessionId", session.ID)
		return e.JSON(http.StatusInternalServerError, map[string]string{
			"error": "could not format the assistant request",
		})
	}

	systemPrompt := "You are a road trip copilot. Use the trip context to answer questions about the planned route, its stops, and arrival times. Keep answers concise and grounded in the provided data."
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.SystemMessage(fmt.Sprintf("Current trip context:\n%s", ctxJSON)),
	}
	for _, message := range truncateConversation(req.Messages, 20) {
		if message.Content == "" {
			continue
		}
		switch message.Role {
		case "user":
			messages = append(messages, openai.UserMessage(message.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(message.Content))
		}
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	completion, err := client.Chat.Completions.New(e.Request.Context(), openai.ChatCompletionNewParams{
		Model:    assistantModel,
		Messages: messages,
	})
	if err != nil {
		e.App.Logger().Error("TripAssistant call failed", "error", err, "sessionId", session.ID)
		return e.JSON(http.StatusBadGateway, map[string]string{
			"error": fmt.Sprintf("assistant request failed: %s", err.Error()),
		})
	}

	reply := ""
	if len(completion.Choices) > 0 {
		reply = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if reply == "" {
		return e.JSON(http.StatusBadGateway, map[string]string{
			"error": "assistant returned an empty message",
		})
	}

	return e.JSON(http.StatusOK, tripAssistantResponse{
		Message: assistantMessage{
			Role:    "assistant",
			Content: reply,
		},
	})
}

func buildAssistantContext(snap trips.Snapshot) *tripAssistantContext {
	ctx := &tripAssistantContext{
		TripRequestID: snap.TripRequestID,
		Summary:       trips.Summarize(snap.Route, snap.Waypoints, time.Now()),
		Waypoints:     snap.Waypoints,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	for _, stop := range snap.Candidates {
		ctx.Suggestions = append(ctx.Suggestions, assistantStop{
			Name:             stop.Name,
			Kind:             string(stop.Kind),
			DistanceOffRoute: stop.DistanceOffRoute,
			Rationale:        stop.Rationale,
		})
	}

	if snap.Navigation.Phase != trips.NavIdle {
		ctx.Navigation = fmt.Sprintf("%s, step %d: %s",
			snap.Navigation.Phase, snap.Navigation.ActiveStepIndex, snap.Navigation.CurrentInstruction)
	}

	return ctx
}

func truncateConversation(messages []assistantMessage, limit int) []assistantMessage {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}
