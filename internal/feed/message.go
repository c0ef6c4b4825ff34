// message.go - Wire envelope for the event feed.

package feed

import "encoding/json"

// Message is the generic envelope for anything sent over the feed.
// Payload stays raw until a handler decides how to decode it.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// Feed message types.
const (
	MsgDeposit  = "deposit"
	MsgWithdraw = "withdraw"
)
