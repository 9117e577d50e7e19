// Package ws serves the read-only observer feed: clients subscribe with
// HELLO and receive one FRAME per tick.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hordesim.ai/internal/protocol"
)

type observerClient struct {
	out         chan []byte
	sampleEvery int
}

// Hub fans per-tick frames out to connected observers. The sim loop
// calls Broadcast once per tick; slow clients drop old frames rather
// than stalling the loop.
type Hub struct {
	mu      sync.Mutex
	clients map[*observerClient]struct{}

	tickRateHz int
	agents     func() int

	log      *log.Logger
	upgrader websocket.Upgrader
}

func NewHub(tickRateHz int, agents func() int, logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*observerClient]struct{}),
		tickRateHz: tickRateHz,
		agents:     agents,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// MinSampleEvery reports the finest sample stride any client wants, or
// 0 when nobody wants samples.
func (h *Hub) MinSampleEvery() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	min := 0
	for c := range h.clients {
		if c.sampleEvery <= 0 {
			continue
		}
		if min == 0 || c.sampleEvery < min {
			min = c.sampleEvery
		}
	}
	return min
}

// Broadcast sends one serialized frame to every observer.
func (h *Hub) Broadcast(frame protocol.FrameMsg) {
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		sendLatest(c.out, b)
	}
}

// sendLatest enqueues b, dropping the oldest pending frame when the
// client's channel is full.
func sendLatest(ch chan []byte, b []byte) {
	for {
		select {
		case ch <- b:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		cl := h.handshake(conn)
		if cl == nil {
			return
		}

		h.mu.Lock()
		h.clients[cl] = struct{}{}
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.clients, cl)
			h.mu.Unlock()
		}()

		done := make(chan struct{})

		// Reader loop: observers send nothing after HELLO, but we must
		// notice disconnects.
		go func() {
			defer close(done)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case b, ok := <-cl.out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func (h *Hub) handshake(conn *websocket.Conn) *observerClient {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		TickRateHz:      h.tickRateHz,
		Agents:          h.agents(),
	}
	b, err := json.Marshal(welcome)
	if err != nil {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil
	}

	return &observerClient{
		out:         make(chan []byte, 8),
		sampleEvery: hello.SampleEvery,
	}
}
