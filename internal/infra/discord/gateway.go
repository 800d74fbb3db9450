package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/metrics"
)

// DefaultGatewayURL is the Discord gateway websocket endpoint.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// Gateway intents requested at identify time: guilds and guild members.
const identifyIntents = 1<<0 | 1<<1

type gatewayPayload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int             `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Gateway maintains the websocket connection that delivers guild events for
// one session and fans them out through a Broker. It is the only
// event-driven piece of the system; everything else is request/response.
type Gateway struct {
	url    string
	origin string
	log    *slog.Logger
	broker *Broker

	mu     sync.Mutex
	conn   *websocket.Conn
	seq    int
	closed bool
	done   chan struct{}
}

// NewGateway creates a disconnected gateway.
func NewGateway(log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		url:    DefaultGatewayURL,
		origin: "https://discord.com",
		log:    log,
		broker: NewBroker(),
		done:   make(chan struct{}),
	}
}

// Connect dials the gateway, completes the hello/identify handshake, and
// starts the read and heartbeat loops.
func (g *Gateway) Connect(ctx context.Context, token string) error {
	conn, err := websocket.Dial(g.url, "", g.origin)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	var hello gatewayPayload
	if err := websocket.JSON.Receive(conn, &hello); err != nil {
		conn.Close()
		return fmt.Errorf("read gateway hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("unexpected gateway opcode %d before identify", hello.Op)
	}

	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		conn.Close()
		return fmt.Errorf("parse gateway hello: %w", err)
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   token,
			"intents": identifyIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "guildctl",
				"device":  "guildctl",
			},
		},
	}
	if err := websocket.JSON.Send(conn, identify); err != nil {
		conn.Close()
		return fmt.Errorf("send gateway identify: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	go g.readLoop()
	go g.heartbeatLoop(time.Duration(helloData.HeartbeatInterval) * time.Millisecond)

	g.log.Debug("gateway connected", "heartbeat_interval_ms", helloData.HeartbeatInterval)
	return nil
}

// Subscribe registers a predicate-filtered member-join subscription. The
// cancel func must be called on every exit path of the waiter.
func (g *Gateway) Subscribe(pred func(domain.MemberJoin) bool) (<-chan domain.MemberJoin, func()) {
	return g.broker.Subscribe(pred)
}

// Close tears down the connection and stops both loops.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.done)
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}

func (g *Gateway) readLoop() {
	for {
		var payload gatewayPayload
		if err := websocket.JSON.Receive(g.conn, &payload); err != nil {
			g.mu.Lock()
			closed := g.closed
			g.mu.Unlock()
			if !closed {
				g.log.Warn("gateway read failed", "error", err)
			}
			return
		}

		if payload.S != 0 {
			g.mu.Lock()
			g.seq = payload.S
			g.mu.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			g.dispatch(payload.T, payload.D)
		case opHeartbeat:
			g.sendHeartbeat()
		case opHeartbeatACK:
			// Nothing to track; the process is too short-lived for
			// zombie-connection detection.
		}
	}
}

func (g *Gateway) dispatch(event string, data json.RawMessage) {
	if event != "GUILD_MEMBER_ADD" {
		return
	}

	var member domain.Member
	if err := json.Unmarshal(data, &member); err != nil {
		g.log.Warn("failed to parse member join event", "error", err)
		return
	}

	metrics.GatewayEvents.WithLabelValues(string(domain.EventTypeMemberJoin)).Inc()
	g.broker.Publish(domain.MemberJoin{GuildID: member.GuildID, Member: member})
}

func (g *Gateway) heartbeatLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.sendHeartbeat()
		}
	}
}

func (g *Gateway) sendHeartbeat() {
	g.mu.Lock()
	conn, seq := g.conn, g.seq
	g.mu.Unlock()
	if conn == nil {
		return
	}

	beat := map[string]any{"op": opHeartbeat, "d": seq}
	if err := websocket.JSON.Send(conn, beat); err != nil {
		g.log.Warn("gateway heartbeat failed", "error", err)
	}
}
