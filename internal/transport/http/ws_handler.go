package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizhost/internal/domain"
)

const writeWait = 10 * time.Second

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeLeaderboard upgrades to a websocket and streams the active quiz's
// winner board until the client goes away.
func (h *Handler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	updates, cancel, err := h.service.Subscribe(r.Context())
	if errors.Is(err, domain.ErrNoActiveQuiz) {
		http.Error(w, "no active quiz", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("leaderboard subscribe: %v", err)
		http.Error(w, errorMessage, http.StatusInternalServerError)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	// clear deadlines inherited from the http.Server timeouts
	_ = conn.SetReadDeadline(time.Time{})

	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// single writer goroutine; the read loop below only detects disconnects
	go func() {
		defer close(writerDone)
		for {
			select {
			case lb, ok := <-updates:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: lb}); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			break
		}
	}

	close(closeSignals)
	<-writerDone
}
