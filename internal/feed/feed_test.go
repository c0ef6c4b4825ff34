package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"shieldedpool/internal/pool"
)

func startPair(t *testing.T) (*Node, *Node, *sync.WaitGroup) {
	t.Helper()
	peers := map[string]string{
		"pool":    "127.0.0.1:9471",
		"indexer": "127.0.0.1:9472",
	}
	var wg sync.WaitGroup
	a := NewNode("pool", peers["pool"], peers, &wg)
	b := NewNode("indexer", peers["indexer"], peers, &wg)

	ready := make(chan struct{}, 2)
	a.StartServer(ready)
	b.StartServer(ready)
	<-ready
	<-ready

	t.Cleanup(func() {
		a.Close()
		b.Close()
		wg.Wait()
		// The nodes share fixed ports across tests; drop any idle
		// keep-alive connections so the next test cannot reuse a
		// connection to a server that has already shut down.
		http.DefaultTransport.(*http.Transport).CloseIdleConnections()
	})
	return a, b, &wg
}

func TestSendMessageDispatchesToHandler(t *testing.T) {
	a, b, _ := startPair(t)

	received := make(chan Message, 1)
	b.RegisterHandler("ping", func(_ *Node, msg Message) {
		received <- msg
	})

	if err := a.SendMessage("indexer", "ping", map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.SenderID != "pool" {
			t.Fatalf("sender = %q, want pool", msg.SenderID)
		}
		var payload map[string]string
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["hello"] != "world" {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never fired")
	}
}

func TestSendMessageUnknownPeer(t *testing.T) {
	a, _, _ := startPair(t)
	if err := a.SendMessage("nobody", "ping", nil); err == nil {
		t.Fatalf("send to unknown peer succeeded")
	}
}

func TestUnknownMessageTypeIsIgnored(t *testing.T) {
	a, _, _ := startPair(t)
	// No handler registered on the indexer; the envelope is dropped, not
	// an error to the sender.
	if err := a.SendMessage("indexer", "mystery", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestBroadcastSkipsSelf(t *testing.T) {
	a, b, _ := startPair(t)

	selfHit := make(chan struct{}, 1)
	a.RegisterHandler("note", func(_ *Node, _ Message) { selfHit <- struct{}{} })

	received := make(chan Message, 1)
	b.RegisterHandler("note", func(_ *Node, msg Message) { received <- msg })

	a.Broadcast("note", map[string]int{"n": 1})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("peer never received the broadcast")
	}
	select {
	case <-selfHit:
		t.Fatalf("broadcast delivered to the sender itself")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublisherDeliversPoolEvents(t *testing.T) {
	a, b, _ := startPair(t)

	deposits := make(chan pool.DepositEvent, 1)
	b.RegisterHandler(MsgDeposit, func(_ *Node, msg Message) {
		var ev pool.DepositEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		deposits <- ev
	})

	pub := NewPublisher(a)
	want := pool.DepositEvent{
		Commitment: pool.Bytes32{31: 0x07},
		LeafIndex:  4,
		NewRoot:    pool.Bytes32{31: 0x09},
		Timestamp:  1700000000,
	}
	pub.PublishDeposit(want)

	select {
	case got := <-deposits:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deposit event never arrived")
	}
}
