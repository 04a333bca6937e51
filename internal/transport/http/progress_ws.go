package http

import (
	"log"
	"net/http"

	"personality-quiz-service/internal/app"
	"github.com/gorilla/websocket"
)

// ProgressWSHandler streams per-user progress snapshots over a websocket so
// the client chart can update live instead of polling after every answer.
type ProgressWSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewProgressWSHandler(service *app.QuizService) *ProgressWSHandler {
	return &ProgressWSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and pumps progress snapshots until the
// session completes or the client disconnects.
func (h *ProgressWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.WatchProgress(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer cancel()

	done := make(chan struct{})
	// reader exists only to observe the close handshake
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
			if update.Completed {
				return
			}
		case <-done:
			return
		}
	}
}
