package ws

import "testing"

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient("c1", nil, ConnInfo{ConnID: "x", UserID: "u1", Kind: "channel"})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected conversation room to be created")
	}
	if _, ok := hub.getConnInfo("c1", nil); !ok {
		t.Fatalf("expected conn info to be tracked")
	}

	hub.RemoveClient("c1", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected conversation room to be removed")
	}
	if len(hub.connInfo) != 0 {
		t.Fatalf("expected conn info to be removed")
	}
}

func TestHubSeparateRoomsPerConversation(t *testing.T) {
	hub := NewHub()

	hub.AddClient("c1", nil, ConnInfo{ConnID: "a", Kind: "channel"})
	hub.AddClient("t12", nil, ConnInfo{ConnID: "b", Kind: "dm"})
	if len(hub.rooms) != 2 {
		t.Fatalf("expected one room per conversation")
	}

	hub.RemoveClient("c1", nil)
	if len(hub.rooms) != 1 {
		t.Fatalf("expected only the targeted room to be removed")
	}
}
