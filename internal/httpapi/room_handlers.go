package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lucasviana/agentroom/internal/costs"
	"github.com/lucasviana/agentroom/internal/eventlog"
	"github.com/lucasviana/agentroom/internal/llm"
)

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *Router) handleCreateRoom(w http.ResponseWriter, req *http.Request) {
	var body createRoomRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		http.Error(w, `{"error": "name is required"}`, http.StatusBadRequest)
		return
	}

	room, err := r.store.CreateRoom(req.Context(), body.Name, body.Description)
	if err != nil {
		captureError(req, err, "create room failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	r.discord.NotifyRoomCreated(req.Context(), room.ID, room.Name)
	r.eventLog.LogAsync(room.ID, eventlog.EventRoomCreated, map[string]any{
		"name": room.Name,
	})

	writeJSON(w, http.StatusCreated, map[string]string{"roomId": room.ID})
}

func (r *Router) handleListRooms(w http.ResponseWriter, req *http.Request) {
	rooms, err := r.store.ListRooms(req.Context())
	if err != nil {
		captureError(req, err, "list rooms failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

type createQuestionRequest struct {
	Question string `json:"question"`
}

type createQuestionResponse struct {
	QuestionID string  `json:"questionId"`
	Answer     *string `json:"answer"`
}

func (r *Router) handleCreateQuestion(w http.ResponseWriter, req *http.Request) {
	roomID := req.PathValue("roomId")
	if roomID == "" {
		http.Error(w, `{"error": "room id is required"}`, http.StatusBadRequest)
		return
	}

	var body createQuestionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	body.Question = strings.TrimSpace(body.Question)
	if body.Question == "" {
		http.Error(w, `{"error": "question is required"}`, http.StatusBadRequest)
		return
	}

	if _, err := r.store.GetRoom(req.Context(), roomID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error": "room not found"}`, http.StatusNotFound)
			return
		}
		captureError(req, err, "get room failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	transcriptions, err := r.store.ListTranscriptions(req.Context(), roomID, 0)
	if err != nil {
		captureError(req, err, "list transcriptions failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	// Without transcript context there is nothing to answer from; the
	// question is stored unanswered.
	var answer *string
	if len(transcriptions) > 0 {
		texts := make([]string, len(transcriptions))
		contextChars := 0
		for i, tr := range transcriptions {
			texts[i] = tr.Transcription
			contextChars += len(tr.Transcription)
		}

		generated, err := r.answerer.GenerateAnswer(req.Context(), body.Question, texts)
		if err != nil {
			captureError(req, err, "answer generation failed")
			r.eventLog.LogAsync(roomID, eventlog.EventAnswerFailed, map[string]any{
				"error": err.Error(),
			})
			if errors.Is(err, llm.ErrUpstreamUnavailable) {
				http.Error(w, `{"error": "answer generation unavailable"}`, http.StatusBadGateway)
				return
			}
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			return
		}
		answer = &generated

		usage := costs.CalculateUsageCosts(costs.UsageMetrics{
			LLMInputTokens:  contextChars / 4, // rough chars-to-tokens estimate
			LLMOutputTokens: len(generated) / 4,
		})
		r.eventLog.LogAsync(roomID, eventlog.EventQuestionAnswered, map[string]any{
			"context_fragments": len(texts),
			"cost_cents":        usage.TotalCostCents,
		})
	}

	question, err := r.store.CreateQuestion(req.Context(), roomID, body.Question, answer)
	if err != nil {
		captureError(req, err, "create question failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	r.eventLog.LogAsync(roomID, eventlog.EventQuestionCreated, map[string]any{
		"question_id": question.ID,
		"answered":    answer != nil,
	})

	writeJSON(w, http.StatusCreated, createQuestionResponse{
		QuestionID: question.ID,
		Answer:     answer,
	})
}

func (r *Router) handleListQuestions(w http.ResponseWriter, req *http.Request) {
	roomID := req.PathValue("roomId")
	if roomID == "" {
		http.Error(w, `{"error": "room id is required"}`, http.StatusBadRequest)
		return
	}

	questions, err := r.store.ListQuestions(req.Context(), roomID)
	if err != nil {
		captureError(req, err, "list questions failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}
