package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"mesgd/pkg/hub"
	"mesgd/pkg/logger"
	"mesgd/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// subscribe handles GET /v1/conversations/{id}/subscribe, upgrading to a
// websocket that streams hub events as JSON. With after_seq the stored
// backlog is replayed first; the subscription is registered before the
// replay so nothing can fall between the two. Clients deduplicate on seq.
func (d *deps) subscribe(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity(w, r)
	if !ok {
		return
	}
	convID := mux.Vars(r)["id"]

	var afterSeq uint64
	replay := false
	if s := r.URL.Query().Get("after_seq"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid after_seq")
			return
		}
		afterSeq = v
		replay = true
	}

	sub, err := d.f.Subscribe(r.Context(), convID, uid)
	if err != nil {
		utils.JSONAppError(w, err)
		return
	}

	conn, err := d.up.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		logger.Warn("ws_upgrade_failed", "conversation", convID, "error", err)
		return
	}
	defer conn.Close()
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// reader: consume control frames, surface disconnects
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeEvent := func(ev hub.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}

	if replay {
		history, err := d.f.FetchHistory(ctx, convID, uid, afterSeq, 0)
		if err != nil {
			logger.Warn("ws_replay_failed", "conversation", convID, "error", err)
			return
		}
		for i := range history {
			if err := writeEvent(hub.Event{Type: hub.EventMessage, Message: &history[i]}); err != nil {
				return
			}
		}
	}

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()
	events := make(chan hub.Event)
	errc := make(chan error, 1)
	go func() {
		for {
			ev, err := sub.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := writeEvent(ev); err != nil {
				return
			}
		case err := <-errc:
			if !errors.Is(err, hub.ErrClosed) && !errors.Is(err, context.Canceled) {
				logger.Debug("ws_subscription_ended", "conversation", convID, "error", err)
			}
			return
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
