package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Mikey786/Mediasoup/internal/bus"
	"github.com/Mikey786/Mediasoup/internal/directory"
	"github.com/Mikey786/Mediasoup/internal/domain"
	"github.com/Mikey786/Mediasoup/internal/events"
	"github.com/Mikey786/Mediasoup/internal/sfu"
	pkglog "github.com/Mikey786/Mediasoup/pkg/log"
)

// Receiver yields inbound messages from the transport, in arrival order.
type Receiver interface {
	Receive() ([]byte, error)
}

// Session is the per-connection controller. It owns the connect/disconnect
// sequencing for one client and routes that client's inbound messages. All
// room truth lives in the directory; the cached isHost/displayName fields
// are for logging only and never gate a host-only action.
type Session struct {
	conn   Conn
	dir    directory.Directory
	sfu    *sfu.Client
	bus    bus.Bus
	events events.Producer // optional, may be nil

	roomName string
	clientID string
	log      zerolog.Logger

	isHost      bool
	displayName string
}

// New creates a session for an accepted connection.
func New(conn Conn, dir directory.Directory, sfuClient *sfu.Client, b bus.Bus, producer events.Producer, roomName, clientID string) *Session {
	logger := pkglog.L().With().
		Str(pkglog.FieldRoom, roomName).
		Str(pkglog.FieldClientID, clientID).
		Logger()

	return &Session{
		conn:     conn,
		dir:      dir,
		sfu:      sfuClient,
		bus:      b,
		events:   producer,
		roomName: roomName,
		clientID: clientID,
		log:      logger,
	}
}

// Run drives the session through its lifecycle: join the room group, run
// the connect sequence, pump inbound messages until the transport closes,
// then tear down. The group leave is unconditional.
func (s *Session) Run(ctx context.Context, r Receiver) {
	s.bus.Join(s.roomName, s.conn)
	defer s.bus.Leave(s.roomName, s.conn)

	ctx = pkglog.WithLogger(ctx, s.log)

	if err := s.connect(ctx); err != nil {
		s.log.Error().Err(err).Msg("connect setup failed")
		// Best-effort: the client may already be gone.
		_ = s.conn.Send(domain.NewErrorMessage(fmt.Sprintf("server connection setup error: %v", err), ""))
		s.teardown(ctx)
		s.conn.Close(domain.CloseSetupFailed, "setup failed")
		return
	}

	for {
		data, err := r.Receive()
		if err != nil {
			s.log.Debug().Err(err).Msg("connection closed")
			break
		}
		if !s.handleMessage(ctx, data) {
			break
		}
	}

	s.teardown(ctx)
}

// connect runs the Connecting -> Active sequence. Any returned error is
// fatal to the connect attempt.
func (s *Session) connect(ctx context.Context) error {
	res, err := s.dir.ResolveOnConnect(ctx, s.roomName, s.clientID)
	if err != nil {
		return fmt.Errorf("resolve connect: %w", err)
	}
	s.isHost = res.IsHost
	s.displayName = res.DisplayName
	room := res.Room

	if err := s.conn.Send(domain.Message{
		Type: domain.MsgTypeRoleAssignment,
		Data: domain.RoleAssignmentData{
			IsHost:      res.IsHost,
			ClientID:    s.clientID,
			DisplayName: res.DisplayName,
		},
	}); err != nil {
		return err
	}

	caps := room.RouterRTPCapabilities
	if len(caps) == 0 {
		caps, err = s.sfu.RouterRTPCapabilities(ctx, s.roomName)
		if err != nil {
			return fmt.Errorf("fetch rtp capabilities: %w", err)
		}
		if err := s.dir.SaveRouterRTPCapabilities(ctx, room.ID, caps); err != nil {
			return fmt.Errorf("save rtp capabilities: %w", err)
		}
	}

	if err := s.conn.Send(domain.Message{
		Type: domain.MsgTypeRouterRTPCapabilities,
		Data: json.RawMessage(caps),
	}); err != nil {
		return err
	}

	if err := s.broadcastParticipantList(ctx, room.ID); err != nil {
		return err
	}

	if !res.IsHost && room.HasHost() {
		if err := s.sendHostInformation(ctx, room); err != nil {
			return err
		}
	}

	if s.events != nil {
		if err := s.events.ProduceJoined(ctx, s.roomName, s.clientID, res.IsHost); err != nil {
			s.log.Warn().Err(err).Msg("failed to produce joined event")
		}
	}

	s.log.Info().Bool("is_host", res.IsHost).Str("display_name", res.DisplayName).Msg("client connected")
	return nil
}

// sendHostInformation tells a connecting attendee who the host is and
// replays the host's active producers so media started before this connect
// is discoverable. The replay itself is best-effort.
func (s *Session) sendHostInformation(ctx context.Context, room *domain.Room) error {
	host, err := s.dir.HostParticipant(ctx, room)
	if err != nil {
		if errors.Is(err, directory.ErrParticipantNotFound) {
			return nil
		}
		return err
	}

	if err := s.conn.Send(domain.Message{
		Type: domain.MsgTypeHostInformation,
		Data: domain.HostInformationData{
			HostClientID:    host.ClientID,
			HostDisplayName: host.DisplayName,
		},
	}); err != nil {
		return err
	}

	producers, err := s.sfu.Producers(ctx, s.roomName, host.ClientID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to fetch host producers")
		return nil
	}
	for _, p := range producers {
		if !p.IsHostProducer() {
			s.log.Debug().Str("producer_id", p.ProducerID).Msg("skipping non-host producer")
			continue
		}
		if err := s.conn.Send(domain.Message{
			Type: domain.MsgTypeNewProducer,
			Data: domain.NewProducerData{
				ClientID:   host.ClientID,
				ProducerID: p.ProducerID,
				Kind:       p.Kind,
				AppData:    p.AppData,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// teardown runs the Active -> Closed sequence. Every step is attempted;
// failures are logged and never skip the remaining steps.
func (s *Session) teardown(ctx context.Context) {
	room, hostLeft, err := s.dir.Retire(ctx, s.clientID)
	if err != nil {
		s.log.Error().Err(err).Msg("retire failed")
	}

	if hostLeft {
		s.publish(ctx, domain.Message{
			Type: domain.MsgTypeHostLeft,
			Data: domain.ClientIDData{ClientID: s.clientID},
		})
	}

	if err := s.sfu.NotifyDisconnected(ctx, s.roomName, s.clientID); err != nil {
		s.log.Warn().Err(err).Msg("failed to notify sfu of disconnect")
	}

	if room != nil {
		if err := s.broadcastParticipantList(ctx, room.ID); err != nil {
			s.log.Error().Err(err).Msg("failed to broadcast participant list on disconnect")
		}
	} else {
		s.publish(ctx, domain.Message{
			Type: domain.MsgTypePeerClosed,
			Data: domain.ClientIDData{ClientID: s.clientID},
		})
	}

	if s.events != nil {
		if err := s.events.ProduceLeft(ctx, s.roomName, s.clientID, hostLeft); err != nil {
			s.log.Warn().Err(err).Msg("failed to produce left event")
		}
	}

	s.log.Info().Bool("host_left", hostLeft).Msg("client disconnected")
}

// broadcastParticipantList publishes the current roster; the bus delivers
// participantList to every group member including this session.
func (s *Session) broadcastParticipantList(ctx context.Context, roomID string) error {
	participants, err := s.dir.ListParticipants(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	return s.bus.Publish(ctx, s.roomName, s.conn.ID(), domain.Message{
		Type: domain.MsgTypeParticipantList,
		Data: participants,
	})
}

// publish is a log-and-continue bus publish for the disconnect path.
func (s *Session) publish(ctx context.Context, msg domain.Message) {
	if err := s.bus.Publish(ctx, s.roomName, s.conn.ID(), msg); err != nil {
		s.log.Error().Err(err).Str(pkglog.FieldMsgType, msg.Type).Msg("bus publish failed")
	}
}
