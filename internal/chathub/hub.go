package chathub

import (
	"encoding/json"
	"log"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

// Subscription binds one connection to one room's fan-out.
type Subscription struct {
	Client Client
	RoomID string
}

// Hub owns every live connection and the room subscription index. All of its
// state is mutated by a single goroutine (Run), fed through channels, so no
// locking is needed and registration, subscription and fan-out for a room
// never interleave mid-update.
type Hub struct {
	// clients maps connection id to client.
	clients map[string]Client
	// userConns maps user id to that user's open connections.
	userConns map[string]map[string]Client
	// roomSubs maps room id to the connections subscribed to it.
	roomSubs map[string]map[string]Client
	// connRooms tracks each connection's subscriptions for cleanup.
	connRooms map[string]map[string]bool

	RegisterCh    chan Client
	UnregisterCh  chan Client
	SubscribeCh   chan Subscription
	UnsubscribeCh chan Subscription
	// BroadcastCh receives every fan-out event, normally from the Redis
	// pub/sub listener. Tests may feed it directly.
	BroadcastCh chan models.Event
	// connQueryCh serves ConnIDs snapshots from the Run goroutine.
	connQueryCh chan chan []string

	Storage storage.Storage
}

func NewHub(s storage.Storage) *Hub {
	return &Hub{
		clients:       make(map[string]Client),
		userConns:     make(map[string]map[string]Client),
		roomSubs:      make(map[string]map[string]Client),
		connRooms:     make(map[string]map[string]bool),
		RegisterCh:    make(chan Client),
		UnregisterCh:  make(chan Client),
		SubscribeCh:   make(chan Subscription),
		UnsubscribeCh: make(chan Subscription),
		BroadcastCh:   make(chan models.Event, 64),
		connQueryCh:   make(chan chan []string),
		Storage:       s,
	}
}

// StartPubSubListener starts the goroutine bridging the Redis event channel
// into the hub. Per-room event order is the publish order, which the router
// guarantees matches persistence order.
func (h *Hub) StartPubSubListener() {
	go func() {
		pubsub := h.Storage.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Error unmarshalling pubsub event: %v", err)
				continue
			}
			h.BroadcastCh <- event
		}
	}()
}

// Run is the hub's main loop. Start it once, as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.register(client)
		case client := <-h.UnregisterCh:
			h.unregister(client)
		case sub := <-h.SubscribeCh:
			h.subscribe(sub)
		case sub := <-h.UnsubscribeCh:
			h.unsubscribe(sub)
		case event := <-h.BroadcastCh:
			h.deliver(event)
		case reply := <-h.connQueryCh:
			ids := make([]string, 0, len(h.clients))
			for connID := range h.clients {
				ids = append(ids, connID)
			}
			reply <- ids
		}
	}
}

// ConnIDs returns a snapshot of the live connection ids, taken by the hub
// goroutine so callers never race its state.
func (h *Hub) ConnIDs() []string {
	reply := make(chan []string, 1)
	h.connQueryCh <- reply
	return <-reply
}

// Subscribe asks the hub to route the room's events to the client. Callers
// must have verified the client's user is a participant of the room.
func (h *Hub) Subscribe(client Client, roomID string) {
	h.SubscribeCh <- Subscription{Client: client, RoomID: roomID}
}

// Unsubscribe stops routing the room's events to the client.
func (h *Hub) Unsubscribe(client Client, roomID string) {
	h.UnsubscribeCh <- Subscription{Client: client, RoomID: roomID}
}

func (h *Hub) register(client Client) {
	connID := client.GetConnID()
	userID := client.GetUserID()

	h.clients[connID] = client
	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[string]Client)
	}
	h.userConns[userID][connID] = client
	h.connRooms[connID] = make(map[string]bool)

	log.Printf("Client registered: conn=%s user=%s", connID, userID)
}

func (h *Hub) unregister(client Client) {
	connID := client.GetConnID()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	h.removeClient(client)
	client.Close()
	log.Printf("Client unregistered: conn=%s user=%s", connID, client.GetUserID())
}

// removeClient drops the connection from every index. On transport loss no
// presence cleanup is needed; typing entries expire on their own.
func (h *Hub) removeClient(client Client) {
	connID := client.GetConnID()
	userID := client.GetUserID()

	delete(h.clients, connID)
	if conns, ok := h.userConns[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.userConns, userID)
		}
	}
	for roomID := range h.connRooms[connID] {
		if subs, ok := h.roomSubs[roomID]; ok {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(h.roomSubs, roomID)
			}
		}
	}
	delete(h.connRooms, connID)
}

func (h *Hub) subscribe(sub Subscription) {
	connID := sub.Client.GetConnID()
	if _, ok := h.clients[connID]; !ok {
		return // connection already gone
	}
	if h.roomSubs[sub.RoomID] == nil {
		h.roomSubs[sub.RoomID] = make(map[string]Client)
	}
	h.roomSubs[sub.RoomID][connID] = sub.Client
	h.connRooms[connID][sub.RoomID] = true
}

func (h *Hub) unsubscribe(sub Subscription) {
	connID := sub.Client.GetConnID()
	if subs, ok := h.roomSubs[sub.RoomID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.roomSubs, sub.RoomID)
		}
	}
	if rooms, ok := h.connRooms[connID]; ok {
		delete(rooms, sub.RoomID)
	}
}

// deliver fans one event out to every connection subscribed to its room.
// Sends are non-blocking: a subscriber whose buffer is full is dropped and
// disconnected so it can never stall the room. One dead subscriber does not
// affect delivery to the others.
func (h *Hub) deliver(event models.Event) {
	var stale []Client
	for _, client := range h.roomSubs[event.RoomID] {
		select {
		case client.GetSendChannel() <- event:
		default:
			log.Printf("Dropping slow client conn=%s user=%s",
				client.GetConnID(), client.GetUserID())
			stale = append(stale, client)
		}
	}
	for _, client := range stale {
		h.removeClient(client)
		client.Close()
	}
}
