// cmd/push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/pkg/session"
	"tripnexus/internal/service/booking/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	exceptionConsumerGroup = "push-gateway-group"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	redisAddr    = getEnv("REDIS_ADDR", "localhost:6379")
	kafkaBrokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	sessionMgr   *session.Manager
	nodeID       = "push-gateway-" + uuid.New().String()[:8]
	upgrader     = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
			return true
		},
	}
)

// Hub 维护所有活跃的连接，并负责消息广播
type Hub struct {
	clients    map[string]*Client // 使用OperatorID作为Key
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.operatorID] = client
			h.lock.Unlock()
			log.Printf("Operator %s registered on node %s", client.operatorID, nodeID)
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.operatorID]; ok {
				delete(h.clients, client.operatorID)
				close(client.send)
			}
			h.lock.Unlock()
			log.Printf("Operator %s unregistered.", client.operatorID)
		case message := <-h.broadcast:
			h.lock.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满的慢连接直接丢弃该条消息
					log.Printf("Operator %s send buffer full, message dropped.", client.operatorID)
				}
			}
			h.lock.RUnlock()
		}
	}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	operatorID string
}

// writePump 负责将send channel中的消息写入websocket，并定期发送心跳。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 负责读取心跳等消息，并在连接断开时清理会话。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if err := sessionMgr.RemoveOperatorGateway(context.Background(), c.operatorID, nodeID); err != nil {
			log.Printf("Failed to remove session for operator %s: %v", c.operatorID, err)
		}
	}()
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	// 1. 从URL参数获取OperatorID
	operatorID := r.URL.Query().Get("operatorId")
	if operatorID == "" {
		http.Error(w, "operatorId is required", http.StatusBadRequest)
		return
	}

	// 2. HTTP升级为WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	// 3. 创建客户端实例并注册到Hub
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), operatorID: operatorID}
	client.hub.register <- client

	// 4. 在Redis中设置会话信息
	err = sessionMgr.SetOperatorGateway(context.Background(), operatorID, nodeID)
	if err != nil {
		log.Printf("Failed to set session for operator %s: %v", operatorID, err)
		conn.Close()
		return
	}

	// 5. 启动读写goroutine
	go client.writePump()
	go client.readPump()
}

// consumeExceptionEvents 订阅异常事件并广播给所有在线的运营人员。
func consumeExceptionEvents(hub *Hub) {
	reader := mq.NewKafkaReader(kafkaBrokers, constants.TopicExceptionEvents, exceptionConsumerGroup)
	defer reader.Close()

	log.Printf("Exception event consumer started on topic '%s'.", constants.TopicExceptionEvents)
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("ERROR: could not read message: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var event domain.ExceptionRaisedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("ERROR: failed to unmarshal exception event: %v", err)
			continue
		}

		payload, err := json.Marshal(map[string]string{
			"type":         "exception_raised",
			"exception_id": event.ExceptionID,
			"order_id":     event.OrderID,
			"kind":         string(event.Kind),
			"message":      event.Message,
		})
		if err != nil {
			continue
		}
		hub.broadcast <- payload
	}
}

func main() {
	sessionMgr = session.NewManager(redisAddr)
	hub := newHub()
	go hub.run()
	go consumeExceptionEvents(hub)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r)
	})
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	log.Printf("Push Gateway (%s) started on :8093", nodeID)
	err := http.ListenAndServe(":8093", nil)
	if err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
