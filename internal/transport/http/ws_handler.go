package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"statquiz-engine/internal/domain"
	"statquiz-engine/internal/engine"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades connections and wires them into the quiz session engine.
// Each connection mounts one assessment; every accepted action answers with a
// full state snapshot so the client renders without holding state.
type WSHandler struct {
	repo  engine.AssessmentRepository
	store engine.SessionStore
	// WarnWindow overrides the engine's low-time window when positive.
	WarnWindow time.Duration
	upgrader   websocket.Upgrader
}

func NewWSHandler(repo engine.AssessmentRepository, store engine.SessionStore) *WSHandler {
	return &WSHandler{
		repo:  repo,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles one quiz session over a websocket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessmentId")
	variant := r.URL.Query().Get("variant")
	if assessmentID == "" {
		http.Error(w, "missing assessmentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	controller, err := engine.Mount(r.Context(), h.repo, h.store, assessmentID, variant)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer controller.Close()
	if h.WarnWindow > 0 {
		controller.SetWarnWindow(h.WarnWindow)
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// The expiry callback runs on the timer goroutine and may race teardown,
	// so sends are funneled through a closed-checked enqueue.
	var sendMu sync.Mutex
	sendClosed := false
	enqueue := func(msg outboundMessage[any]) {
		sendMu.Lock()
		defer sendMu.Unlock()
		if sendClosed {
			return
		}
		select {
		case send <- msg:
		default:
		}
	}

	// Timer-forced submission is the one transition the client does not
	// trigger; push the new state when it happens.
	controller.OnChange(func(snap engine.Snapshot) {
		enqueue(outboundMessage[any]{Type: "state", Payload: snap})
	})

	enqueue(outboundMessage[any]{Type: "state", Payload: controller.Snapshot()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, controller, inbound); err != nil {
			enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			continue
		}
		enqueue(outboundMessage[any]{Type: "state", Payload: controller.Snapshot()})
	}

	sendMu.Lock()
	sendClosed = true
	close(send)
	sendMu.Unlock()
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, controller *engine.Controller, inbound inboundMessage) error {
	ctx := r.Context()
	switch inbound.Type {
	case "start":
		return controller.Start(ctx)
	case "answer":
		var answer domain.Answer
		if err := json.Unmarshal(inbound.Payload, &answer); err != nil {
			return errors.New("invalid answer payload")
		}
		return controller.Answer(ctx, answer)
	case "navigate":
		var payload navigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.New("invalid navigate payload")
		}
		return controller.Navigate(ctx, payload.Index)
	case "flag":
		return controller.ToggleFlag(ctx)
	case "pause":
		controller.Pause()
		return nil
	case "resume":
		controller.Resume(ctx)
		return nil
	case "submit":
		return controller.Submit(ctx)
	case "review":
		return controller.Review()
	case "results":
		return controller.BackToResults()
	case "retake":
		return controller.Retake(ctx)
	default:
		return errors.New("unsupported message type")
	}
}
