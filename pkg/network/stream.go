// pkg/network/stream.go
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/engine"
	"github.com/opd-ai/go-swingbye/pkg/logging"
	"github.com/opd-ai/go-swingbye/pkg/metrics"
	"github.com/opd-ai/go-swingbye/pkg/physics"
	"github.com/opd-ai/go-swingbye/pkg/validation"
)

// MessageType tags outbound stream messages
type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgPrediction MessageType = "prediction"
	MsgAck        MessageType = "ack"
	MsgError      MessageType = "error"
)

// CommandType tags inbound client commands
type CommandType string

const (
	CmdPoint   CommandType = "point"
	CmdLaunch  CommandType = "launch"
	CmdPredict CommandType = "predict"
)

// MaxPredictionSteps caps the forecast length a client may ask for.
const MaxPredictionSteps = 2000

// sendBuffer is how many outbound messages may queue per client before
// new ones are dropped.
const sendBuffer = 16

// ErrServerClosed is returned for connections arriving after Close.
var ErrServerClosed = errors.New("stream server closed")

// Message is what the server writes to clients.
type Message struct {
	Type       MessageType        `json:"type"`
	Command    CommandType        `json:"command,omitempty"`
	Snapshot   *engine.Snapshot   `json:"snapshot,omitempty"`
	Prediction []physics.Vector2D `json:"prediction,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Command is what clients send to steer ships.
type Command struct {
	Type   CommandType `json:"type"`
	Ship   int         `json:"ship"`
	Target [2]float64  `json:"target"`
	Steps  int         `json:"steps,omitempty"`
	DT     float64     `json:"dt,omitempty"`
}

// StreamConfig holds the stream's write and forecast settings.
type StreamConfig struct {
	WriteTimeout       time.Duration
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	// PredictionSteps and PredictionDT are used when a predict command
	// leaves them unset.
	PredictionSteps int
	PredictionDT    float64
}

// NewStreamConfig derives stream settings from the environment and the
// scenario's forecast settings.
func NewStreamConfig(env *config.EnvironmentConfig, sim config.SimulationConfig) StreamConfig {
	sc := StreamConfig{
		WriteTimeout:       env.WriteTimeout,
		BreakerMaxFailures: env.BreakerMaxFailures,
		BreakerTimeout:     env.BreakerTimeout,
		PredictionSteps:    sim.PredictionSteps,
		PredictionDT:       sim.DT,
	}
	if sim.PredictionSteps > 0 && sim.PredictionHorizon > 0 {
		sc.PredictionDT = sim.PredictionHorizon / float64(sim.PredictionSteps)
	}
	return sc
}

// StreamServer upgrades HTTP requests to websockets, fans snapshots out to
// every client and applies their commands to the runner's world.
type StreamServer struct {
	runner    *engine.Runner
	metrics   *metrics.Collector
	logger    *logging.Logger
	validator *validation.MessageValidator
	upgrader  websocket.Upgrader
	cfg       StreamConfig

	mu      sync.RWMutex
	clients map[string]*streamClient
	closed  bool
	nextID  atomic.Uint64
}

type streamClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	breaker   *Breaker
	done      chan struct{}
	closeOnce sync.Once
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewStreamServer creates a stream bound to runner. Register Broadcast with
// runner.OnSnapshot to feed it.
func NewStreamServer(runner *engine.Runner, collector *metrics.Collector, cfg StreamConfig, logger *logging.Logger) *StreamServer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &StreamServer{
		runner:    runner,
		metrics:   collector,
		logger:    logger,
		validator: validation.NewMessageValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		cfg:     cfg,
		clients: make(map[string]*streamClient),
	}
}

// ServeHTTP handles one client for the lifetime of its connection.
func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.Background()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(ctx, "websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c, err := s.register(conn)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer s.unregister(c)

	s.logger.Info(ctx, "stream client connected", "client", c.id, "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.enqueue(c, Message{Type: MsgSnapshot, Snapshot: s.runner.Snapshot()})
	s.readLoop(ctx, c)
}

func (s *StreamServer) register(conn *websocket.Conn) (*streamClient, error) {
	id := fmt.Sprintf("client-%d", s.nextID.Add(1))
	c := &streamClient{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		breaker: NewBreaker(id, s.cfg.BreakerMaxFailures, s.cfg.BreakerTimeout, s.logger),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	s.clients[id] = c
	s.metrics.SetStreamClients(len(s.clients))
	return c, nil
}

func (s *StreamServer) unregister(c *streamClient) {
	c.close()
	s.validator.Forget(c.id)

	s.mu.Lock()
	delete(s.clients, c.id)
	s.metrics.SetStreamClients(len(s.clients))
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stream client disconnected", "client", c.id)
}

func (s *StreamServer) readLoop(ctx context.Context, c *streamClient) {
	c.conn.SetReadLimit(2 * validation.MaxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(ctx, "stream read failed", "client", c.id, "error", err)
			}
			return
		}
		s.enqueue(c, s.HandleCommand(c.id, data))
	}
}

func (s *StreamServer) writeLoop(c *streamClient) {
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			err := c.breaker.Execute(ctx, func() error {
				if err := c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
					return err
				}
				return c.conn.WriteMessage(websocket.TextMessage, data)
			})
			s.metrics.RecordStreamMessage(err == nil)
		}
	}
}

// enqueue queues msg for c, dropping it when the client is behind.
func (s *StreamServer) enqueue(c *streamClient, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), "failed to encode stream message", err, "type", msg.Type)
		return
	}
	s.queue(c, data)
}

func (s *StreamServer) queue(c *streamClient, data []byte) {
	select {
	case c.send <- data:
	default:
		s.metrics.RecordStreamMessage(false)
	}
}

// Broadcast sends snap to every connected client. It never blocks on a
// slow client.
func (s *StreamServer) Broadcast(snap *engine.Snapshot) {
	data, err := json.Marshal(Message{Type: MsgSnapshot, Snapshot: snap})
	if err != nil {
		s.logger.Error(context.Background(), "failed to encode snapshot", err, "time", snap.Time)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		s.queue(c, data)
	}
}

// HandleCommand validates and applies one raw client command and returns
// the reply for that client.
func (s *StreamServer) HandleCommand(clientID string, data []byte) Message {
	if err := s.validator.ValidateMessage(data, clientID); err != nil {
		return errorMessage("", err)
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return errorMessage("", fmt.Errorf("malformed command: %w", err))
	}
	if err := validation.ValidateIndex(cmd.Ship); err != nil {
		return errorMessage(cmd.Type, err)
	}

	var err error
	switch cmd.Type {
	case CmdPoint:
		if err := validation.ValidateFinite("target", cmd.Target[0], cmd.Target[1]); err != nil {
			return errorMessage(cmd.Type, err)
		}
		s.runner.Do(func(w *engine.World) {
			err = w.PointShip(cmd.Ship, config.Vec(cmd.Target))
		})

	case CmdLaunch:
		s.runner.Do(func(w *engine.World) {
			err = w.LaunchShip(cmd.Ship)
		})

	case CmdPredict:
		steps, dt, verr := s.forecastSettings(cmd)
		if verr != nil {
			return errorMessage(cmd.Type, verr)
		}
		var preds []physics.Vector2D
		s.runner.Do(func(w *engine.World) {
			preds, err = w.ShipLaunchPredictions(cmd.Ship, steps, dt)
		})
		if err == nil {
			return Message{Type: MsgPrediction, Command: cmd.Type, Prediction: preds}
		}

	default:
		return errorMessage(cmd.Type, fmt.Errorf("unknown command %q", cmd.Type))
	}

	if err != nil {
		return errorMessage(cmd.Type, err)
	}
	return Message{Type: MsgAck, Command: cmd.Type}
}

func (s *StreamServer) forecastSettings(cmd Command) (int, float64, error) {
	steps, dt := cmd.Steps, cmd.DT
	if steps == 0 {
		steps = s.cfg.PredictionSteps
	}
	if dt == 0 {
		dt = s.cfg.PredictionDT
	}
	if steps <= 0 || steps > MaxPredictionSteps {
		return 0, 0, fmt.Errorf("steps must be in [1, %d], got %d", MaxPredictionSteps, steps)
	}
	if err := validation.ValidateFinite("dt", dt); err != nil {
		return 0, 0, err
	}
	if dt <= 0 {
		return 0, 0, fmt.Errorf("dt must be positive, got %g", dt)
	}
	return steps, dt, nil
}

func errorMessage(cmd CommandType, err error) Message {
	return Message{Type: MsgError, Command: cmd, Error: err.Error()}
}

// ClientCount returns the number of connected clients.
func (s *StreamServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *StreamServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
	s.validator.Close()
}
