package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"blindrelay/internal/session"
	"blindrelay/internal/ws"
	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

const storeTimeout = 5 * time.Second

// Dispatcher orchestrates connection lifecycle and message flow: it admits
// connections into sessions, relays routing decisions through the connection
// registry, and fires the one-shot AI admission call. It holds no session
// state of its own; serialization lives in the per-session mutex.
type Dispatcher struct {
	sessions *session.Registry
	conns    *ws.Registry
	store    interfaces.SessionStore
	notifier interfaces.Notifier
	limiter  *RateLimiter

	// wsBaseURL is the externally reachable WebSocket root handed to the AI
	// service, e.g. "ws://localhost:8000/ws".
	wsBaseURL string
}

// New creates a dispatcher.
func New(sessions *session.Registry, conns *ws.Registry, store interfaces.SessionStore, notifier interfaces.Notifier, wsBaseURL string) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		conns:     conns,
		store:     store,
		notifier:  notifier,
		limiter:   NewRateLimiter(),
		wsBaseURL: wsBaseURL,
	}
}

// Connect admits a new connection: resolve or materialize the session,
// claim the seat, register the transport handle, send the state snapshot,
// and notify the other participants.
//
// A role conflict keeps the socket open and unregistered: the client is
// informed and anything it sends later is dropped as an unknown sender.
func (d *Dispatcher) Connect(conn interfaces.Connection) error {
	sessionID := conn.SessionID()
	userID := conn.UserID()
	role := conn.Role()

	sess := d.resolveSession(sessionID)

	res, err := sess.AddParticipant(role, userID, conn)
	if err != nil {
		if errors.Is(err, session.ErrRoleConflict) {
			log.Printf("Seat rejected: user=%s role=%s session=%s", userID, role, sessionID)
			_ = conn.WriteJSON(map[string]interface{}{
				"type":  "error",
				"error": "role_conflict",
			})
			return nil
		}
		return err
	}

	if err := d.conns.Register(conn); err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}

	log.Printf("Participant joined: user=%s role=%s session=%s rejoin=%t", userID, role, sessionID, res.Rejoin)

	if res.TriggerAdmission {
		d.RequestAdmission(sessionID)
	}

	if res.Activated {
		go d.onActivated(sess)
	}

	if err := conn.WriteJSON(sess.Snapshot(role)); err != nil {
		log.Printf("Failed to send snapshot to %s: %v", userID, err)
	}

	notice := types.JoinNotice{Type: "user_joined", UserID: userID, Role: role}
	d.broadcast(sess, userID, notice)

	return nil
}

// Inbound decodes one client frame and relays the routing decision.
// Failures are per-message: the sender is informed and the connection stays
// up.
func (d *Dispatcher) Inbound(conn interfaces.Connection, data []byte) {
	userID := conn.UserID()

	if !d.limiter.Allow(userID) {
		d.sendError(conn, "rate_limited")
		return
	}

	var msg types.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		d.sendError(conn, "invalid_message")
		return
	}
	if err := msg.Validate(); err != nil {
		d.sendError(conn, err.Error())
		return
	}

	sess, exists := d.sessions.Get(conn.SessionID())
	if !exists {
		d.sendError(conn, "session_not_found")
		return
	}

	decision, err := sess.RouteMessage(userID, msg.Content)
	if err != nil {
		log.Printf("Message dropped: user=%s session=%s: %v", userID, conn.SessionID(), err)
		d.sendError(conn, "undeliverable")
		return
	}

	for _, delivery := range decision.Deliveries {
		d.conns.Send(delivery.UserID, delivery.Msg)
	}
}

// Disconnect deregisters a connection and vacates its seat. A superseded
// handle finds itself no longer registered, and the owner-compared seat
// removal leaves a seat alone once a newer join holds it.
func (d *Dispatcher) Disconnect(conn interfaces.Connection) {
	if !d.conns.Unregister(conn) {
		return
	}

	userID := conn.UserID()
	sess, exists := d.sessions.Get(conn.SessionID())
	if !exists {
		return
	}

	role, held := sess.RemoveParticipant(userID, conn)
	if !held {
		return
	}

	log.Printf("Participant left: user=%s role=%s session=%s", userID, role, conn.SessionID())
	d.broadcast(sess, userID, types.LeaveNotice{Type: "user_left", UserID: userID, Role: role})
}

// resolveSession returns the live session, materializing one on first
// reference. For sessions reloaded after a restart the durable record
// supplies the reserved judge seat; with no record the session starts with
// every seat open.
func (d *Dispatcher) resolveSession(sessionID string) *session.Session {
	if sess, exists := d.sessions.Get(sessionID); exists {
		return sess
	}

	judgeID := ""
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if record, err := d.store.GetSession(ctx, sessionID); err == nil {
		judgeID = record.CreatorID
	}

	return d.sessions.GetOrCreate(sessionID, judgeID)
}

// RequestAdmission asks the AI service to attach to the session, detached
// from the caller. Fire and forget: admission failure is never a session
// fault and its outcome is observed only through logs.
func (d *Dispatcher) RequestAdmission(sessionID string) {
	go d.requestAdmission(sessionID)
}

func (d *Dispatcher) requestAdmission(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	callbackURL := fmt.Sprintf("%s/%s", d.wsBaseURL, sessionID)
	if err := d.notifier.Notify(ctx, sessionID, callbackURL); err != nil {
		log.Printf("AI admission request failed for session %s: %v", sessionID, err)
		return
	}
	log.Printf("AI admission requested: session=%s", sessionID)
}

// onActivated persists the active status and arms the duration watchdog
// from the record, when it carries one.
func (d *Dispatcher) onActivated(sess *session.Session) {
	sessionID := sess.ID()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := d.store.UpdateStatus(ctx, sessionID, types.StatusActive); err != nil {
		log.Printf("Failed to persist active status for session %s: %v", sessionID, err)
	}

	record, err := d.store.GetSession(ctx, sessionID)
	if err != nil || record.DurationMinutes <= 0 {
		return
	}

	duration := time.Duration(record.DurationMinutes) * time.Minute
	time.AfterFunc(duration, func() { d.expireSession(sessionID) })
	log.Printf("Session active: session=%s expires_in=%s", sessionID, duration)
}

// expireSession forces the terminal state when the test duration elapses.
func (d *Dispatcher) expireSession(sessionID string) {
	sess, exists := d.sessions.Get(sessionID)
	if !exists {
		return
	}
	sess.Expire()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := d.store.UpdateStatus(ctx, sessionID, types.StatusCompleted); err != nil {
		log.Printf("Failed to persist completed status for session %s: %v", sessionID, err)
	}

	log.Printf("Session expired: session=%s", sessionID)
}

// broadcast sends v to every participant except the originator. Absent
// recipients are dropped by the connection registry.
func (d *Dispatcher) broadcast(sess *session.Session, exceptUserID string, v interface{}) {
	for _, userID := range sess.UserIDs() {
		if userID != exceptUserID {
			d.conns.Send(userID, v)
		}
	}
}

func (d *Dispatcher) sendError(conn interfaces.Connection, reason string) {
	if err := conn.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": reason,
	}); err != nil {
		log.Printf("Failed to send error to %s: %v", conn.UserID(), err)
	}
}
