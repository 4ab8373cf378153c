package dto

// MessagePayload — полезная нагрузка события sendMessage
type MessagePayload struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"` // text, image, system
}
