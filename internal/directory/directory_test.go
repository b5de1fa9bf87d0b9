package directory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mikey786/Mediasoup/internal/domain"
)

func newTestDirectory(t *testing.T) *GormDirectory {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.RoomModel{}, &domain.ParticipantModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormDirectory(db)
}

func TestFirstConnectBecomesHost(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	res, err := dir.ResolveOnConnect(ctx, "standup", "client-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.IsHost {
		t.Error("first connect should be host")
	}
	if res.DisplayName != "Host" {
		t.Errorf("display name = %q, want %q", res.DisplayName, "Host")
	}
	if res.Room.HostClientID == nil || *res.Room.HostClientID != "client-1" {
		t.Errorf("room host = %v, want client-1", res.Room.HostClientID)
	}
}

func TestSecondConnectIsAttendee(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "standup", "client-1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	res, err := dir.ResolveOnConnect(ctx, "standup", "client-abcdef")
	if err != nil {
		t.Fatalf("attendee connect: %v", err)
	}
	if res.IsHost {
		t.Error("second connect should not be host")
	}
	if res.DisplayName != "User-clien" {
		t.Errorf("display name = %q, want %q", res.DisplayName, "User-clien")
	}
}

func TestAtMostOneHost(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	clients := []string{"c1", "c2", "c3", "c4"}
	for _, c := range clients {
		if _, err := dir.ResolveOnConnect(ctx, "demo", c); err != nil {
			t.Fatalf("connect %s: %v", c, err)
		}
	}

	// Hosts churn: host leaves, someone else takes over, repeat.
	if _, _, err := dir.Retire(ctx, "c1"); err != nil {
		t.Fatalf("retire c1: %v", err)
	}
	if _, err := dir.ResolveOnConnect(ctx, "demo", "c5"); err != nil {
		t.Fatalf("connect c5: %v", err)
	}

	room, err := dir.RoomByName(ctx, "demo")
	if err != nil {
		t.Fatalf("room lookup: %v", err)
	}
	list, err := dir.ListParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	hosts := 0
	var hostID string
	for _, p := range list {
		if p.IsHost {
			hosts++
			hostID = p.ClientID
		}
	}
	if hosts != 1 {
		t.Fatalf("host count = %d, want 1", hosts)
	}
	if room.HostClientID == nil || *room.HostClientID != hostID {
		t.Errorf("room host = %v, participant host = %s", room.HostClientID, hostID)
	}
}

func TestHostlessRoomElectsNextConnect(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-a", "host-1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	if _, err := dir.ResolveOnConnect(ctx, "room-a", "viewer-1"); err != nil {
		t.Fatalf("attendee connect: %v", err)
	}

	_, hostLeft, err := dir.Retire(ctx, "host-1")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if !hostLeft {
		t.Fatal("retiring the host should report hostLeft")
	}

	res, err := dir.ResolveOnConnect(ctx, "room-a", "viewer-2")
	if err != nil {
		t.Fatalf("connect after host left: %v", err)
	}
	if !res.IsHost {
		t.Error("connect into a hostless room should win the host role")
	}
	if res.DisplayName != "Host" {
		t.Errorf("display name = %q, want %q", res.DisplayName, "Host")
	}
}

func TestHostRejoinRestoresDisplayName(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-b", "host-1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := dir.SetDisplayName(ctx, "host-1", "Alice"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	// Rejoin without retiring: recorded host keeps the role and the name.
	res, err := dir.ResolveOnConnect(ctx, "room-b", "host-1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !res.IsHost {
		t.Error("recorded host should stay host on rejoin")
	}
	if res.DisplayName != "Alice" {
		t.Errorf("display name = %q, want %q", res.DisplayName, "Alice")
	}
}

func TestAttendeeRejoinRestoresDisplayName(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-c", "host-1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	if _, err := dir.ResolveOnConnect(ctx, "room-c", "viewer-1"); err != nil {
		t.Fatalf("attendee connect: %v", err)
	}
	if _, err := dir.SetDisplayName(ctx, "viewer-1", "Bob"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	res, err := dir.ResolveOnConnect(ctx, "room-c", "viewer-1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if res.IsHost {
		t.Error("attendee should not become host while the host is recorded")
	}
	if res.DisplayName != "Bob" {
		t.Errorf("display name = %q, want %q", res.DisplayName, "Bob")
	}
}

func TestRetireNonHostKeepsRoomHost(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-d", "host-1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	if _, err := dir.ResolveOnConnect(ctx, "room-d", "viewer-1"); err != nil {
		t.Fatalf("attendee connect: %v", err)
	}

	room, hostLeft, err := dir.Retire(ctx, "viewer-1")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if hostLeft {
		t.Error("retiring an attendee must not report hostLeft")
	}
	if room == nil || room.HostClientID == nil || *room.HostClientID != "host-1" {
		t.Errorf("room host should remain host-1, got %+v", room)
	}
}

func TestRetireUnknownClient(t *testing.T) {
	dir := newTestDirectory(t)

	room, hostLeft, err := dir.Retire(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if room != nil || hostLeft {
		t.Errorf("unknown client retire = (%v, %v), want (nil, false)", room, hostLeft)
	}
}

func TestSetDisplayNameBoundaries(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-e", "c1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"ab", true},
		{strings.Repeat("x", 26), true},
		{"abc", false},
		{strings.Repeat("x", 25), false},
	}
	for _, tt := range tests {
		_, err := dir.SetDisplayName(ctx, "c1", tt.name)
		if tt.wantErr && err != ErrInvalidDisplayName {
			t.Errorf("SetDisplayName(%d chars) = %v, want ErrInvalidDisplayName", len(tt.name), err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("SetDisplayName(%d chars) = %v, want nil", len(tt.name), err)
		}
	}

	// A rejected rename must not mutate stored state.
	p, err := dir.SetDisplayName(ctx, "c1", "final name")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := dir.SetDisplayName(ctx, "c1", "xx"); err != ErrInvalidDisplayName {
		t.Fatalf("short rename = %v, want ErrInvalidDisplayName", err)
	}
	list, err := dir.ListParticipants(ctx, p.RoomID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].DisplayName != "final name" {
		t.Errorf("roster after rejected rename = %+v", list)
	}
}

func TestSetDisplayNameUnknownClient(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.SetDisplayName(context.Background(), "ghost", "valid name")
	if err != ErrParticipantNotFound {
		t.Errorf("err = %v, want ErrParticipantNotFound", err)
	}
}

func TestClientIDMigratesBetweenRooms(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-x", "nomad"); err != nil {
		t.Fatalf("connect room-x: %v", err)
	}
	if _, err := dir.ResolveOnConnect(ctx, "room-y", "anchor"); err != nil {
		t.Fatalf("connect room-y: %v", err)
	}

	// Same client id joins a different room: the record moves, it does not
	// duplicate.
	res, err := dir.ResolveOnConnect(ctx, "room-y", "nomad")
	if err != nil {
		t.Fatalf("migrate connect: %v", err)
	}
	if res.IsHost {
		t.Error("nomad should be an attendee in room-y")
	}

	roomX, err := dir.RoomByName(ctx, "room-x")
	if err != nil {
		t.Fatalf("room-x lookup: %v", err)
	}
	listX, err := dir.ListParticipants(ctx, roomX.ID)
	if err != nil {
		t.Fatalf("list room-x: %v", err)
	}
	if len(listX) != 0 {
		t.Errorf("room-x roster = %+v, want empty", listX)
	}

	listY, err := dir.ListParticipants(ctx, res.Room.ID)
	if err != nil {
		t.Fatalf("list room-y: %v", err)
	}
	if len(listY) != 2 {
		t.Errorf("room-y roster size = %d, want 2", len(listY))
	}
}

func TestListParticipantsOrder(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ResolveOnConnect(ctx, "room-f", "host-1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, c := range []string{"v1", "v2", "v3"} {
		if _, err := dir.ResolveOnConnect(ctx, "room-f", c); err != nil {
			t.Fatalf("connect %s: %v", c, err)
		}
	}
	if _, err := dir.SetDisplayName(ctx, "v1", "Zoe"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := dir.SetDisplayName(ctx, "v2", "Amy"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	room, err := dir.RoomByName(ctx, "room-f")
	if err != nil {
		t.Fatalf("room lookup: %v", err)
	}
	list, err := dir.ListParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(list) != 4 {
		t.Fatalf("roster size = %d, want 4", len(list))
	}
	if !list[0].IsHost {
		t.Errorf("first entry should be host, got %+v", list[0])
	}
	if list[1].DisplayName != "Amy" {
		t.Errorf("second entry = %q, want Amy", list[1].DisplayName)
	}
}

func TestIsHostUnknownClient(t *testing.T) {
	dir := newTestDirectory(t)

	isHost, err := dir.IsHost(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("IsHost: %v", err)
	}
	if isHost {
		t.Error("unknown client must not be host")
	}
}

func TestSaveRouterRTPCapabilities(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	res, err := dir.ResolveOnConnect(ctx, "room-g", "c1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	caps := []byte(`{"codecs":[{"mimeType":"video/VP8"}]}`)
	if err := dir.SaveRouterRTPCapabilities(ctx, res.Room.ID, caps); err != nil {
		t.Fatalf("save: %v", err)
	}

	room, err := dir.RoomByName(ctx, "room-g")
	if err != nil {
		t.Fatalf("room lookup: %v", err)
	}
	if string(room.RouterRTPCapabilities) != string(caps) {
		t.Errorf("stored caps = %s", room.RouterRTPCapabilities)
	}

	if err := dir.SaveRouterRTPCapabilities(ctx, res.Room.ID, nil); err == nil {
		t.Error("empty caps should be rejected")
	}
	if err := dir.SaveRouterRTPCapabilities(ctx, "missing-room", caps); err != ErrRoomNotFound {
		t.Errorf("missing room = %v, want ErrRoomNotFound", err)
	}
}
