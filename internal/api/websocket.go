// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/PersonaEvolveMCP/internal/models"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// evolutionEvent 推送给订阅者的演化事件
type evolutionEvent struct {
	Type   string                 `json:"type"`
	UserID string                 `json:"user_id"`
	RoleID string                 `json:"role_id"`
	Entry  *models.EvolutionEntry `json:"entry"`
}

// EvolutionHub 管理按用户订阅的演化事件WebSocket连接
type EvolutionHub struct {
	mutex        sync.RWMutex
	connections  map[string]map[*websocket.Conn]bool // userID -> connections
	writeTimeout time.Duration
}

// NewEvolutionHub 创建演化事件推送中心
func NewEvolutionHub() *EvolutionHub {
	return &EvolutionHub{
		connections:  make(map[string]map[*websocket.Conn]bool),
		writeTimeout: 10 * time.Second,
	}
}

// HandleConnection 升级HTTP连接并保持到客户端断开
func (h *EvolutionHub) HandleConnection(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少用户ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	h.register(userID, conn)
	defer h.unregister(userID, conn)

	// 读循环只用于感知客户端断开，收到的消息被丢弃
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// register 注册连接
func (h *EvolutionHub) register(userID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	h.connections[userID][conn] = true
}

// unregister 注销并关闭连接
func (h *EvolutionHub) unregister(userID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if conns, ok := h.connections[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
	conn.Close()
}

// NotifyEvolution 把已提交的演化事件推送给该用户的所有订阅者。
// 实现 services.EvolutionNotifier。
func (h *EvolutionHub) NotifyEvolution(userID, roleID string, entry *models.EvolutionEntry) {
	payload, err := json.Marshal(evolutionEvent{
		Type:   "evolution",
		UserID: userID,
		RoleID: roleID,
		Entry:  entry,
	})
	if err != nil {
		log.Printf("序列化演化事件失败: %v", err)
		return
	}

	h.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections[userID]))
	for conn := range h.connections[userID] {
		conns = append(conns, conn)
	}
	h.mutex.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.unregister(userID, conn)
		}
	}
}

// ConnectionCount 当前订阅该用户的连接数（测试与状态接口用）
func (h *EvolutionHub) ConnectionCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections[userID])
}
