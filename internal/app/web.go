package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/diffpressure/internal/config"
	"github.com/relabs-tech/diffpressure/internal/pressure"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// readingHub keeps the latest reading and pushes every update to the
// connected websocket clients.
type readingHub struct {
	mu      sync.Mutex
	last    pressure.Reading
	have    bool
	clients map[*websocket.Conn]bool
}

func newReadingHub() *readingHub {
	return &readingHub{clients: make(map[*websocket.Conn]bool)}
}

func (h *readingHub) update(r pressure.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = r
	h.have = true
	for c := range h.clients {
		if err := c.WriteJSON(r); err != nil {
			log.Printf("web: websocket write error: %v", err)
			c.Close()
			delete(h.clients, c)
		}
	}
}

// latest returns the last reading, false before the first one.
func (h *readingHub) latest() (pressure.Reading, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.have
}

func (h *readingHub) handleLatest(w http.ResponseWriter, r *http.Request) {
	last, ok := h.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(last); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (h *readingHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	if h.have {
		if err := conn.WriteJSON(h.last); err != nil {
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			return
		}
	}
}

func (h *readingHub) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pressure", h.handleLatest)
	mux.HandleFunc("/ws", h.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// RunWeb serves the latest reading from MQTT over HTTP and websocket.
func RunWeb() error {
	cfg := config.Get()
	hub := newReadingHub()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicReading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r pressure.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: reading unmarshal error: %v", err)
			return
		}
		hub.update(r)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicReading)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, hub.routes())
}
