package logstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	ackWait      = 15 * time.Second
	pingInterval = 30 * time.Second
)

var ErrNotConnected = errors.New("log socket not connected")

// WSLog talks to the ordered log store over a websocket. One WSLog carries
// at most one live subscription; re-authentication builds a fresh one.
type WSLog struct {
	addr  string
	room  string
	token string
	log   *zap.Logger

	// redial throttle: one immediate attempt, then at most one every
	// few seconds so a flapping server is not hammered.
	limiter *rate.Limiter

	mu   sync.Mutex
	conn *websocket.Conn
	acks map[string]chan error
}

func NewWSLog(addr, room, token string, log *zap.Logger) *WSLog {
	return &WSLog{
		addr:    addr,
		room:    room,
		token:   token,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		acks:    make(map[string]chan error),
	}
}

// Subscribe dials the store and keeps a read loop alive until ctx is done
// or stop is called. Dial and read failures surface through onError; the
// loop then waits for the redial limiter and tries again, so stale data
// stays on screen flagged rather than silently frozen.
func (w *WSLog) Subscribe(ctx context.Context, onSnapshot func([]Record), onError func(error)) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}

			conn, err := w.dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Warn("log_dial_failed", zap.String("addr", w.addr), zap.Error(err))
				onError(err)
				continue
			}

			w.setConn(conn)
			err = w.serve(ctx, conn, onSnapshot, onError)
			w.setConn(nil)
			w.failPendingAcks(ErrNotConnected)

			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			w.log.Warn("log_subscription_lost", zap.Error(err))
			onError(err)
		}
	}()

	return cancel
}

// Append sends one record and waits for the store's ack. The record's
// ClientKey correlates ack to request.
func (w *WSLog) Append(ctx context.Context, rec Record) error {
	if rec.ClientKey == "" {
		return errors.New("record needs a client key")
	}

	w.mu.Lock()
	conn := w.conn
	if conn == nil {
		w.mu.Unlock()
		return ErrNotConnected
	}
	ch := make(chan error, 1)
	w.acks[rec.ClientKey] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.acks, rec.ClientKey)
		w.mu.Unlock()
	}()

	evt, err := NewEvent(EventTypeAppend, w.room, AppendPayload{Record: rec})
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeWait)
	err = wsjson.Write(wctx, conn, evt)
	cancel()
	if err != nil {
		return fmt.Errorf("sending append: %w", err)
	}

	select {
	case err := <-ch:
		return err
	case <-time.After(ackWait):
		return errors.New("timed out waiting for append ack")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WSLog) dial(ctx context.Context) (*websocket.Conn, error) {
	// Auth travels as a query param; websockets cannot send headers.
	u, err := url.Parse(w.addr)
	if err != nil {
		return nil, fmt.Errorf("invalid log address: %w", err)
	}
	q := u.Query()
	q.Set("room", w.room)
	if w.token != "" {
		q.Set("token", w.token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	w.log.Info("log_connected", zap.String("addr", w.addr), zap.String("room", w.room))
	return conn, nil
}

// serve runs the read loop plus a ping ticker and returns when either
// fails or ctx is cancelled.
func (w *WSLog) serve(ctx context.Context, conn *websocket.Conn, onSnapshot func([]Record), onError func(error)) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			var event Event
			if err := wsjson.Read(gctx, conn, &event); err != nil {
				return err
			}
			w.handleEvent(&event, onSnapshot, onError)
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pctx, cancel := context.WithTimeout(gctx, writeWait)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	return err
}

func (w *WSLog) handleEvent(event *Event, onSnapshot func([]Record), onError func(error)) {
	switch event.Type {
	case EventTypeSnapshot:
		var p SnapshotPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			w.log.Warn("bad_snapshot_payload", zap.Error(err))
			onError(fmt.Errorf("malformed snapshot: %w", err))
			return
		}
		onSnapshot(p.Records)

	case EventTypeAck:
		var p AckPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		w.resolveAck(p.ClientKey, nil)

	case EventTypeError:
		var p ErrorPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return
		}
		err := fmt.Errorf("log store: %s (%s)", p.Message, p.Code)
		if p.ClientKey != "" {
			// rejected append; resolves that append's ack
			w.resolveAck(p.ClientKey, err)
			return
		}
		onError(err)

	case EventTypePong:
		// keepalive, nothing to do

	default:
		w.log.Debug("unknown_event", zap.String("type", event.Type))
	}
}

func (w *WSLog) setConn(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
}

func (w *WSLog) resolveAck(clientKey string, err error) {
	w.mu.Lock()
	ch, ok := w.acks[clientKey]
	if ok {
		delete(w.acks, clientKey)
	}
	w.mu.Unlock()
	if ok {
		ch <- err
	}
}

func (w *WSLog) failPendingAcks(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, ch := range w.acks {
		delete(w.acks, key)
		ch <- err
	}
}
