// Package wsserver carries router requests and their statuses over
// websockets.
package wsserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"suapreport/internal/components/assert"
	"suapreport/internal/components/telemetry"
	"suapreport/internal/router"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	report_wsserver_upgrade = "wsserver.upgrade"
	report_wsserver_write   = "wsserver.write"
	report_wsserver_frame   = "wsserver.frame"
	report_wsserver_health  = "wsserver.health"
)

const (
	writeTimeout = 10 * time.Second
	maxFrameSize = 4 << 20
)

// Router is the part of router.Router the server uses.
type Router interface {
	Dispatch(route string, payload json.RawMessage, sink router.Sink) error
	Queued() int
	Busy() bool
}

// Request is a frame sent by the client.
type Request struct {
	ID      string          `json:"id"`
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}

// Reply is a frame sent to the client, one per status.
type Reply struct {
	ID    string `json:"id"`
	Route string `json:"route"`
	router.Status
}

type Health struct {
	Queued  int    `json:"queued"`
	Busy    bool   `json:"busy"`
	Session string `json:"session"`
}

type Server struct {
	router   Router
	state    func() string
	upgrader websocket.Upgrader
	tel      telemetry.API
}

// New creates a server dispatching to r. state reports the browser session
// state on the health endpoint.
func New(r Router, state func() string, tel telemetry.API) *Server {
	assert.NotNil(r, "router")
	assert.NotNil(tel, "tel")
	if state == nil {
		state = func() string { return "unknown" }
	}
	return &Server{
		router: r,
		state:  state,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		tel: telemetry.NewScopedAPI("wsserver", tel),
	}
}

// Handler serves websockets at path and the health check at /healthz.
func (s *Server) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.HandleWebSocket)
	mux.HandleFunc("/healthz", s.HandleHealth)
	return mux
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(Health{
		Queued:  s.router.Queued(),
		Busy:    s.router.Busy(),
		Session: s.state(),
	})
	if err != nil {
		s.tel.ReportWarning(report_wsserver_health, err)
	}
}

// conn serializes writes, statuses of concurrent requests share it.
type conn struct {
	id     string
	ws     *websocket.Conn
	tel    telemetry.API
	mu     sync.Mutex
	closed atomic.Bool
}

func (c *conn) write(reply Reply) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(reply); err != nil {
		// later statuses are dropped, the job itself keeps running
		c.closed.Store(true)
		c.tel.ReportWarning(report_wsserver_write, err, c.id, reply.ID)
	}
}

// sink tags the statuses of one request with its id.
type sink struct {
	conn  *conn
	id    string
	route string
}

func (s sink) Send(status router.Status) {
	s.conn.write(Reply{ID: s.id, Route: s.route, Status: status})
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.tel.ReportWarning(report_wsserver_upgrade, err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxFrameSize)

	c := &conn{id: uuid.NewString(), ws: ws, tel: s.tel}
	defer c.closed.Store(true)
	s.tel.ReportDebug("client connected", c.id, r.RemoteAddr)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.tel.ReportDebug("client disconnected", c.id, err)
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.tel.ReportWarning(report_wsserver_frame, err, c.id)
			c.write(Reply{Status: router.Failed(errors.New("malformed frame"))})
			continue
		}

		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if req.Route == "" {
			c.write(Reply{ID: req.ID, Status: router.Failed(errors.New("route is required"))})
			continue
		}
		// unknown routes already got their error status
		_ = s.router.Dispatch(req.Route, req.Payload, sink{conn: c, id: req.ID, route: req.Route})
	}
}
