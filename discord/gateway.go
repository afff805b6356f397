package discord

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Add Prometheus metrics
var (
	gwConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_gateway_connection_attempts_total",
		Help: "The total number of connection attempts to the Discord gateway",
	})

	gwConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogwatch_gateway_connection_errors_total",
		Help: "The total number of gateway connection errors encountered",
	})

	gwCurrentConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogwatch_gateway_current_connections",
		Help: "The current number of active gateway connections",
	})

	gwConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blogwatch_gateway_connection_duration_seconds",
		Help:    "Duration of gateway connections",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s, double each bucket, 10 buckets
	})
)

const (
	DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

	wsReadBufferSize  = 1024 * 1024 // 1MB
	wsWriteBufferSize = 1024        // 1KB
	wsReadTimeout     = 90 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

// Gateway opcodes, see the Discord gateway documentation
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatAck = 11
)

type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// GatewayConfig holds configuration for the gateway connection
type GatewayConfig struct {
	// URL is the gateway endpoint, DefaultGatewayURL when empty
	URL   string
	Token string
}

// Gateway maintains the long-lived websocket connection to Discord. The bot
// must hold a gateway session for the account to count as online; message
// sending itself goes over REST. Ready() is closed once the first READY
// dispatch arrives, which gates the first poll cycle.
type Gateway struct {
	config  GatewayConfig
	ready   chan struct{}
	once    sync.Once
	writeMu sync.Mutex
	seq     atomic.Int64
}

func NewGateway(config GatewayConfig) *Gateway {
	if config.URL == "" {
		config.URL = DefaultGatewayURL
	}
	return &Gateway{
		config: config,
		ready:  make(chan struct{}),
	}
}

// Ready is closed when the gateway session has been established
func (g *Gateway) Ready() <-chan struct{} {
	return g.ready
}

// Run connects to the gateway and keeps the session alive, reconnecting
// with exponential backoff until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	// Set up exponential backoff for reconnection attempts
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 1.5
	bo.MaxElapsedTime = 0 // Never stop retrying

	dialer := websocket.Dialer{
		ReadBufferSize:   wsReadBufferSize,
		WriteBufferSize:  wsWriteBufferSize,
		HandshakeTimeout: 45 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   45 * time.Second,
			KeepAlive: 45 * time.Second,
		}).DialContext,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		gwConnectionAttempts.Inc()
		conn, _, err := dialer.DialContext(ctx, g.config.URL, nil)
		if err != nil {
			gwConnectionErrors.Inc()
			log.Errorf("Error connecting to Discord gateway: %s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}

		gwCurrentConnections.Inc()
		connStart := time.Now()

		if err := g.session(ctx, conn); err != nil {
			gwConnectionErrors.Inc()
			log.Errorf("Gateway session ended: %s", err)
		}

		conn.Close()
		gwCurrentConnections.Dec()
		gwConnectionDuration.Observe(time.Since(connStart).Seconds())

		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// session runs the HELLO, IDENTIFY, READY handshake and then the read and
// heartbeat loops until the connection drops.
func (g *Gateway) session(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

	hello, err := g.readPayload(conn)
	if err != nil {
		return err
	}
	if hello.Op != opHello {
		log.Warnf("Expected HELLO, got opcode %d", hello.Op)
	}

	var helloD helloData
	if err := json.Unmarshal(hello.D, &helloD); err != nil {
		return err
	}
	heartbeatInterval := time.Duration(helloD.HeartbeatInterval) * time.Millisecond

	identify, err := json.Marshal(identifyData{
		Token:   g.config.Token,
		Intents: 0, // Outbound only, no gateway events are consumed
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "blogwatch",
			Device:  "blogwatch",
		},
	})
	if err != nil {
		return err
	}
	if err := g.writePayload(conn, payload{Op: opIdentify, D: identify}); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.heartbeatLoop(sessionCtx, conn, heartbeatInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p, err := g.readPayload(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Unexpected websocket close: %v", err)
			}
			return err
		}

		switch p.Op {
		case opDispatch:
			if p.S != nil {
				g.seq.Store(*p.S)
			}
			if p.T == "READY" {
				log.WithFields(log.Fields{
					"gateway": g.config.URL,
				}).Info("Discord gateway session ready")
				g.once.Do(func() { close(g.ready) })
			}
		case opHeartbeat:
			// The server may request an immediate heartbeat
			g.sendHeartbeat(conn)
		case opHeartbeatAck:
			log.Debug("Received heartbeat ack")
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(conn); err != nil {
				log.Warn("Heartbeat failed, closing connection for restart: ", err)
				conn.Close()
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat(conn *websocket.Conn) error {
	seq, err := json.Marshal(g.seq.Load())
	if err != nil {
		return err
	}
	return g.writePayload(conn, payload{Op: opHeartbeat, D: seq})
}

func (g *Gateway) readPayload(conn *websocket.Conn) (*payload, error) {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(message, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *Gateway) writePayload(conn *websocket.Conn, p payload) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(p)
}
