package chatroom

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	return NewRegistry(nopRecorder{})
}

// joinedClient creates a room (or joins an existing one), wires conn as
// the client's socket, and returns the Room and the peer end the test
// reads/writes on.
func joinedClient(t *testing.T, reg *Registry, room, name string) (*Room, net.Conn) {
	t.Helper()
	rm, _, err := reg.GetOrCreate(room)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	serverSide, peerSide := net.Pipe()
	if _, err := rm.AddMember(name, serverSide); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	return rm, peerSide
}

// A broadcast's fan-out pass walks the full membership list with no
// self-exclusion (spec.md §4.2's pseudocode sends to "each client c in
// the list", the sender included), so the sender sees its own join
// announcement and its own chat lines exactly like every other member.
func TestBroadcastReachesEveryMemberIncludingSender(t *testing.T) {
	reg := newTestRegistry()
	rm, alice := joinedClient(t, reg, "lobby", "alice")
	_ = rm

	aliceReader := bufio.NewReader(alice)
	line, err := aliceReader.ReadString('\n')
	if err != nil {
		t.Fatalf("alice ReadString: %v", err)
	}
	if line != "alice has joined\n" {
		t.Fatalf("alice got %q, want %q", line, "alice has joined\n")
	}

	_, bob := joinedClient(t, reg, "lobby", "bob")
	bobReader := bufio.NewReader(bob)

	line, err = aliceReader.ReadString('\n')
	if err != nil {
		t.Fatalf("alice ReadString: %v", err)
	}
	if line != "bob has joined\n" {
		t.Fatalf("alice got %q, want %q", line, "bob has joined\n")
	}
	line, err = bobReader.ReadString('\n')
	if err != nil {
		t.Fatalf("bob ReadString: %v", err)
	}
	if line != "bob has joined\n" {
		t.Fatalf("bob got %q, want %q", line, "bob has joined\n")
	}

	if _, err := alice.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	line, err = aliceReader.ReadString('\n')
	if err != nil {
		t.Fatalf("alice ReadString: %v", err)
	}
	if line != "alice:hello\n" {
		t.Fatalf("alice got %q, want %q", line, "alice:hello\n")
	}
	line, err = bobReader.ReadString('\n')
	if err != nil {
		t.Fatalf("bob ReadString: %v", err)
	}
	if line != "alice:hello\n" {
		t.Fatalf("bob got %q, want %q", line, "alice:hello\n")
	}
}

func TestDetachOnPeerClose(t *testing.T) {
	reg := newTestRegistry()
	rm, alice := joinedClient(t, reg, "lobby", "alice")

	alice.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if reg.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %q was not torn down after its only member left", rm.Name())
}

func TestRoomRebornAfterEmpty(t *testing.T) {
	reg := newTestRegistry()
	_, alice := joinedClient(t, reg, "lobby", "alice")
	alice.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && reg.Len() != 0 {
		time.Sleep(5 * time.Millisecond)
	}

	rm2, _, err := reg.GetOrCreate("lobby")
	if err != nil {
		t.Fatalf("GetOrCreate after teardown: %v", err)
	}
	if !rm2.isRunning() {
		t.Fatal("newly (re)created room is not Running")
	}
}

func TestOversizeBroadcastRejectsSender(t *testing.T) {
	reg := newTestRegistry()
	rm, _ := joinedClient(t, reg, "lobby", "alice")

	huge := make([]byte, MaxMsgSize)
	err := rm.BroadcastFrom(&Client{name: "alice"}, huge, true)
	if err == nil {
		t.Fatal("expected oversize broadcast to be rejected")
	}
}

func TestAbortOnEmptyRoomDoesNotLeak(t *testing.T) {
	reg := newTestRegistry()
	rm, _, err := reg.GetOrCreate("ghost")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	rm.Abort()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && reg.Len() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if reg.Len() != 0 {
		t.Fatal("aborted empty room was never removed from the registry")
	}
}
