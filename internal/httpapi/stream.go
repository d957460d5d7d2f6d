package httpapi

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// handleStream upgrades to a websocket and pushes every status event to the
// companion UI as it is produced, a supplementary push transport alongside
// the poll-based /api/results (SPEC_FULL.md §2). /api/results' contract is
// unchanged by this route's existence.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.verifyReferer(r) {
		http.Error(w, "forbidden: referer mismatch", http.StatusForbidden)

		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{s.CompanionOrigin},
	})
	if err != nil {
		s.Logger.Warn("httpapi: websocket accept failed", "error", err)

		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	ch, cancel := s.Dispatcher.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")

			return
		case ev, ok := <-ch:
			if !ok {
				return
			}

			if err := wsjson.Write(ctx, conn, ev); err != nil {
				s.Logger.Debug("httpapi: websocket write failed, closing", "error", err)

				return
			}
		}
	}
}
