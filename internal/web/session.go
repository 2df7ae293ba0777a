package web

import (
	"net/http"
	"sync"
	"time"

	"image-workbench/internal/compressor"
	"image-workbench/internal/logger"
	"image-workbench/internal/presenter"
	"image-workbench/internal/workbench"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const sessionCookie = "workbench_session"

// session pairs one workbench with the WebSocket clients watching it.
type session struct {
	id  string
	wb  *workbench.Workbench
	log *logrus.Entry

	mu       sync.Mutex
	lastSeen time.Time
	clients  map[*websocket.Conn]bool
	version  uint64
}

func (s *Server) newSession() *session {
	id := uuid.NewString()
	log := logger.WithSession(s.log, id)

	opts := compressor.Options{
		MaxSizeMB:        s.cfg.Compression.MaxSizeMB,
		MaxWidthOrHeight: s.cfg.Compression.MaxWidthOrHeight,
		UseWebWorker:     s.cfg.Compression.UseWebWorker,
		InitialQuality:   s.cfg.Compression.InitialQuality,
		MaxIteration:     s.cfg.Compression.MaxIteration,
	}

	sess := &session{
		id:       id,
		wb:       workbench.New(s.compressor, opts, s.previews, s.stats, log),
		log:      log,
		lastSeen: time.Now(),
		clients:  make(map[*websocket.Conn]bool),
	}
	sess.wb.Subscribe(sess.broadcast)
	return sess
}

// session returns the caller's session, creating one and setting the cookie
// when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessionsMutex.RLock()
		sess, ok := s.sessions[c.Value]
		s.sessionsMutex.RUnlock()
		if ok {
			sess.touch()
			return sess
		}
	}

	sess := s.newSession()
	s.sessionsMutex.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMutex.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	sess.log.Debug("Session created")
	return sess
}

// expireSessions drops sessions idle for longer than ttl and returns how many.
func (s *Server) expireSessions(now time.Time, ttl time.Duration) int {
	s.sessionsMutex.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if now.Sub(sess.seen()) > ttl {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.sessionsMutex.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

func (sess *session) touch() {
	sess.mu.Lock()
	sess.lastSeen = time.Now()
	sess.mu.Unlock()
}

func (sess *session) seen() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastSeen
}

// addClient sends the current view to conn and starts broadcasting to it.
func (sess *session) addClient(conn *websocket.Conn) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := sess.wb.Snapshot()
	msg := WSMessage{Type: "state_changed", Data: presenter.Render(snap)}
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	sess.version = max(sess.version, snap.Version)
	sess.clients[conn] = true
	return nil
}

func (sess *session) removeClient(conn *websocket.Conn) {
	sess.mu.Lock()
	delete(sess.clients, conn)
	sess.mu.Unlock()
}

// broadcast pushes the rendered view to every client. Snapshots older than
// the last one sent are skipped.
func (sess *session) broadcast(snap workbench.Snapshot) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if snap.Version <= sess.version {
		return
	}
	sess.version = snap.Version

	msg := WSMessage{Type: "state_changed", Data: presenter.Render(snap)}
	for conn := range sess.clients {
		if err := conn.WriteJSON(msg); err != nil {
			sess.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(sess.clients, conn)
			conn.Close()
		}
	}
}

// close resets the workbench, releasing its previews, and disconnects clients.
func (sess *session) close() {
	sess.wb.Reset()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	for conn := range sess.clients {
		conn.Close()
		delete(sess.clients, conn)
	}
}
