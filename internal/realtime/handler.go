package realtime

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Handler serves the SockJS endpoint mounted at prefix. Streaming transports stay open
// longer than the server write timeout, so the write deadline is lifted for these requests.
func (h *Hub) Handler(prefix string) http.Handler {
	sockjsHandler := sockjs.NewHandler(prefix, sockjs.DefaultOptions, h.serveSession)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := http.NewResponseController(w).SetWriteDeadline(time.Time{})
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.logger.WithError(err).Debug("clear realtime write deadline")
		}
		sockjsHandler.ServeHTTP(w, r)
	})
}

func (h *Hub) serveSession(session sockjs.Session) {
	client := NewClient(uuid.NewString())
	h.Register(client)
	defer h.Unregister(client)

	logger := h.logger.WithField("client_id", client.ID)
	logger.Debug("realtime client connected")

	go func() {
		for msg := range client.Send {
			if err := session.Send(string(msg)); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			logger.Debug("realtime client disconnected")
			return
		}
		parsed, ok := ParseSubscribe([]byte(msg))
		if !ok {
			continue
		}
		if parsed.Action == "unsubscribe" {
			h.UpdateSubscription(client, Subscription{})
			continue
		}
		h.UpdateSubscription(client, Subscription{Status: parsed.Status})
	}
}
