// node.go - HTTP/JSON event distribution between the pool and indexers.
//
// Each participant runs a Node: a small HTTP server accepting Message
// envelopes on /events plus a peer directory for outbound sends. The pool
// side wraps a Node in a Publisher that implements pool.EventSink and
// broadcasts every committed event; indexers register handlers per
// message type.

package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"shieldedpool/internal/pool"
)

// HandlerFunc processes one decoded envelope.
type HandlerFunc func(n *Node, msg Message)

// Node is one endpoint of the event feed.
type Node struct {
	ID      string
	Address string
	Peers   map[string]string // node ID -> address

	server    *http.Server
	waitGroup *sync.WaitGroup

	mu       sync.Mutex
	handlers map[string]HandlerFunc
}

// NewNode creates and initializes a new Node.
func NewNode(id, address string, peers map[string]string, wg *sync.WaitGroup) *Node {
	return &Node{
		ID:        id,
		Address:   address,
		Peers:     peers,
		waitGroup: wg,
		handlers:  make(map[string]HandlerFunc),
	}
}

// RegisterHandler installs the handler for a message type, replacing any
// previous one.
func (n *Node) RegisterHandler(msgType string, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[msgType] = h
}

// eventHandler is the HTTP handler for incoming envelopes. It decodes the
// envelope and dispatches the payload to the registered handler.
func (n *Node) eventHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		log.Printf("[%s] Received a bad request: %v", n.ID, err)
		return
	}

	n.mu.Lock()
	h, ok := n.handlers[msg.Type]
	n.mu.Unlock()
	if !ok {
		log.Printf("[%s] Received unknown message type: %s", n.ID, msg.Type)
		w.WriteHeader(http.StatusOK)
		return
	}
	h(n, msg)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "event received")
}

// StartServer starts the node's HTTP server in a new goroutine and
// signals on ready once it is actively listening.
func (n *Node) StartServer(ready chan<- struct{}) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", n.eventHandler)

	n.server = &http.Server{
		Addr:    n.Address,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", n.Address)
	if err != nil {
		log.Fatalf("[%s] failed to listen: %v", n.ID, err)
	}

	n.waitGroup.Add(1)
	go func() {
		defer n.waitGroup.Done()
		log.Printf("[%s] Feed server starting on %s", n.ID, n.Address)
		ready <- struct{}{}
		if err := n.server.Serve(listener); err != http.ErrServerClosed {
			log.Fatalf("[%s] Feed server failed: %v", n.ID, err)
		}
	}()
}

// Close shuts the node's server down.
func (n *Node) Close() error {
	if n.server == nil {
		return nil
	}
	return n.server.Close()
}

// SendMessage sends a typed payload to one peer.
func (n *Node) SendMessage(targetID, msgType string, payload interface{}) error {
	targetAddress, ok := n.Peers[targetID]
	if !ok {
		return fmt.Errorf("peer '%s' not found in directory", targetID)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}
	messageBytes, err := json.Marshal(Message{
		Type:     msgType,
		Payload:  payloadBytes,
		SenderID: n.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message envelope: %v", err)
	}

	req, err := http.NewRequest("POST", "http://"+targetAddress+"/events", bytes.NewBuffer(messageBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned non-OK status: %s", resp.Status)
	}
	return nil
}

// Broadcast sends a typed payload to every peer except this node.
func (n *Node) Broadcast(msgType string, payload interface{}) {
	for id := range n.Peers {
		if id == n.ID {
			continue
		}
		if err := n.SendMessage(id, msgType, payload); err != nil {
			log.Printf("[%s] Broadcast of '%s' to %s failed: %v", n.ID, msgType, id, err)
		}
	}
}

// Publisher adapts a Node into the pool's event sink. Broadcasts run in a
// goroutine so the pool's critical section never blocks on the network.
type Publisher struct {
	node *Node
}

// NewPublisher wraps a node as an event publisher.
func NewPublisher(node *Node) *Publisher {
	return &Publisher{node: node}
}

func (p *Publisher) PublishDeposit(ev pool.DepositEvent) {
	go p.node.Broadcast(MsgDeposit, ev)
}

func (p *Publisher) PublishWithdraw(ev pool.WithdrawEvent) {
	go p.node.Broadcast(MsgWithdraw, ev)
}
