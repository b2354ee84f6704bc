package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stream Redis Stream 名称
type Stream string

// StreamSearchEvents 检索使用事件默认流
const StreamSearchEvents Stream = "stream:search:events"

// TypeSearchUsage 检索使用事件
const TypeSearchUsage = "search_usage"

// messageSource 写入信封的来源标识
const messageSource = "resource-search-api"

// SchemaVersion 信封版本，消费方据此判断载荷格式
const SchemaVersion = 1

// Message 流消息信封，载荷按 Type 解析
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Version   int               `json:"version"`
	Source    string            `json:"source"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 封装载荷，时间统一为 UTC
func NewMessage(id, msgType string, payload any) (*Message, error) {
	if id == "" || msgType == "" {
		return nil, errors.New("message id and type are required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		Version:   SchemaVersion,
		Source:    messageSource,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SetMetadata 空值不写入
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 读取元数据，nil map 安全
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has empty payload", m.ID)
	}
	return json.Unmarshal(m.Payload, v)
}

// DecodeMessage 解析 XADD 写入的 data 字段
func DecodeMessage(values map[string]any) (*Message, error) {
	data, ok := values["data"].(string)
	if !ok {
		return nil, errors.New("stream entry missing data field")
	}
	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, fmt.Errorf("decode stream entry: %w", err)
	}
	return &msg, nil
}
