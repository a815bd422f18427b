package types

// Change events mirror row-level store changes. They are what the
// realtime fan-out delivers; arrival order is not display order, so
// consumers merge by id and sort rather than append blindly.

type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

type MessageEvent struct {
	Op      Operation `json:"op" msgpack:"op"`
	Message Message   `json:"message" msgpack:"message"`
}

type ConversationEvent struct {
	Op           Operation    `json:"op" msgpack:"op"`
	Conversation Conversation `json:"conversation" msgpack:"conversation"`
}
