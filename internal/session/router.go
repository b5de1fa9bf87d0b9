package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mikey786/Mediasoup/internal/directory"
	"github.com/Mikey786/Mediasoup/internal/domain"
	pkglog "github.com/Mikey786/Mediasoup/pkg/log"
)

// handleMessage decodes one inbound envelope and dispatches it. It returns
// false when the session must stop, which only happens when the participant
// record has vanished mid-session.
func (s *Session) handleMessage(ctx context.Context, data []byte) bool {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn().Err(err).Msg("malformed message")
		_ = s.conn.Send(domain.NewErrorMessage("invalid message format", ""))
		return true
	}

	err := s.dispatch(ctx, &env)
	if err == nil {
		return true
	}

	if errors.Is(err, directory.ErrParticipantNotFound) {
		s.log.Error().Str(pkglog.FieldMsgType, env.Type).Msg("participant record lost")
		_ = s.conn.Send(domain.NewErrorMessage("session no longer valid", env.Type))
		s.conn.Close(domain.CloseSessionLost, "session lost")
		return false
	}

	s.log.Warn().Err(err).Str(pkglog.FieldMsgType, env.Type).Msg("message handling failed")
	_ = s.conn.Send(domain.NewErrorMessage(err.Error(), env.Type))
	return true
}

func (s *Session) dispatch(ctx context.Context, env *domain.Envelope) error {
	switch env.Type {
	case domain.MsgTypeUpdateDisplayName:
		return s.handleUpdateDisplayName(ctx, env.Data)
	case domain.MsgTypeCreateWebRtcTransport:
		return s.handleCreateTransport(ctx)
	case domain.MsgTypeConnectTransport:
		return s.handleConnectTransport(ctx, env.Data)
	case domain.MsgTypeProduce:
		return s.handleProduce(ctx, env.Data)
	case domain.MsgTypeCloseProducer:
		return s.handleCloseProducer(ctx, env.Data)
	case domain.MsgTypeConsume:
		return s.handleConsume(ctx, env.Data)
	case domain.MsgTypeResumeConsumer:
		return s.handleResumeConsumer(ctx, env.Data)
	default:
		s.log.Debug().Str(pkglog.FieldMsgType, env.Type).Msg("ignoring unrecognized message type")
		return nil
	}
}

func (s *Session) handleUpdateDisplayName(ctx context.Context, data json.RawMessage) error {
	var req domain.UpdateDisplayNameData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid updateDisplayName payload: %w", err)
	}

	p, err := s.dir.SetDisplayName(ctx, s.clientID, req.DisplayName)
	if err != nil {
		return err
	}
	s.displayName = p.DisplayName

	if err := s.conn.Send(domain.Message{
		Type: domain.MsgTypeDisplayNameUpdated,
		Data: domain.DisplayNameUpdatedData{
			ClientID:    s.clientID,
			DisplayName: p.DisplayName,
		},
	}); err != nil {
		return err
	}

	return s.broadcastParticipantList(ctx, p.RoomID)
}

func (s *Session) handleCreateTransport(ctx context.Context) error {
	options, err := s.sfu.CreateTransport(ctx, s.roomName, s.clientID)
	if err != nil {
		return err
	}
	return s.conn.Send(domain.Message{
		Type: domain.MsgTypeTransportCreated,
		Data: json.RawMessage(options),
	})
}

func (s *Session) handleConnectTransport(ctx context.Context, data json.RawMessage) error {
	var req domain.ConnectTransportData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid connectTransport payload: %w", err)
	}
	if req.TransportID == "" || len(req.DtlsParameters) == 0 {
		return fmt.Errorf("transportId and dtlsParameters are required")
	}

	if err := s.sfu.ConnectTransport(ctx, s.roomName, s.clientID, req.TransportID, req.DtlsParameters); err != nil {
		return err
	}
	return s.conn.Send(domain.Message{
		Type: domain.MsgTypeTransportConnected,
		Data: domain.TransportConnectedData{TransportID: req.TransportID},
	})
}

func (s *Session) handleProduce(ctx context.Context, data json.RawMessage) error {
	isHost, err := s.dir.IsHost(ctx, s.clientID)
	if err != nil {
		return err
	}
	if !isHost {
		return fmt.Errorf("only host can share media")
	}

	var req domain.ProduceData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid produce payload: %w", err)
	}
	if req.TransportID == "" || req.Kind == "" || len(req.RtpParameters) == 0 {
		return fmt.Errorf("transportId, kind and rtpParameters are required")
	}

	appData := req.AppData
	if appData == nil {
		appData = map[string]any{}
	}
	appData["isHostProducer"] = true

	producerID, err := s.sfu.CreateProducer(ctx, s.roomName, s.clientID, req.TransportID, req.Kind, req.RtpParameters, appData)
	if err != nil {
		return err
	}

	if err := s.conn.Send(domain.Message{
		Type: domain.MsgTypeProduced,
		Data: domain.ProducedData{
			ProducerID: producerID,
			Kind:       req.Kind,
			ClientID:   s.clientID,
		},
	}); err != nil {
		return err
	}

	s.publish(ctx, domain.Message{
		Type: domain.MsgTypeNewProducer,
		Data: domain.NewProducerData{
			ClientID:   s.clientID,
			ProducerID: producerID,
			Kind:       req.Kind,
			AppData:    appData,
		},
	})
	return nil
}

func (s *Session) handleCloseProducer(ctx context.Context, data json.RawMessage) error {
	isHost, err := s.dir.IsHost(ctx, s.clientID)
	if err != nil {
		return err
	}
	if !isHost {
		return fmt.Errorf("only host can manage producers")
	}

	var req domain.CloseProducerData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid closeProducer payload: %w", err)
	}
	if req.ProducerID == "" {
		return fmt.Errorf("producerId is required")
	}

	s.publish(ctx, domain.Message{
		Type: domain.MsgTypeProducerClosed,
		Data: domain.ProducerClosedData{
			ClientID:   s.clientID,
			ProducerID: req.ProducerID,
		},
	})
	return nil
}

func (s *Session) handleConsume(ctx context.Context, data json.RawMessage) error {
	var req domain.ConsumeData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid consume payload: %w", err)
	}
	if req.TransportID == "" || req.ProducerID == "" || len(req.RtpCapabilities) == 0 {
		return fmt.Errorf("transportId, producerId and rtpCapabilities are required")
	}

	params, err := s.sfu.CreateConsumer(ctx, s.roomName, s.clientID, req.TransportID, req.ProducerID, req.RtpCapabilities, req.AppData)
	if err != nil {
		return err
	}
	return s.conn.Send(domain.Message{
		Type: domain.MsgTypeConsumed,
		Data: json.RawMessage(params),
	})
}

func (s *Session) handleResumeConsumer(ctx context.Context, data json.RawMessage) error {
	var req domain.ResumeConsumerData
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid resumeConsumer payload: %w", err)
	}
	if req.ConsumerID == "" {
		return fmt.Errorf("consumerId is required")
	}

	if err := s.sfu.ResumeConsumer(ctx, s.roomName, s.clientID, req.ConsumerID); err != nil {
		return err
	}
	return s.conn.Send(domain.Message{
		Type: domain.MsgTypeConsumerResumed,
		Data: domain.ConsumerResumedData{ConsumerID: req.ConsumerID},
	})
}
