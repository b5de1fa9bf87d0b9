package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeUpdateDisplayName     = "updateDisplayName"
	MsgTypeCreateWebRtcTransport = "createWebRtcTransport"
	MsgTypeConnectTransport      = "connectTransport"
	MsgTypeProduce               = "produce"
	MsgTypeCloseProducer         = "closeProducer"
	MsgTypeConsume               = "consume"
	MsgTypeResumeConsumer        = "resumeConsumer"
)

// WebSocket message types to client.
const (
	MsgTypeRoleAssignment        = "roleAssignment"
	MsgTypeRouterRTPCapabilities = "routerRtpCapabilities"
	MsgTypeHostInformation       = "hostInformation"
	MsgTypeNewProducer           = "newProducer"
	MsgTypeParticipantList       = "participantList"
	MsgTypeDisplayNameUpdated    = "displayNameUpdated"
	MsgTypeTransportCreated      = "transportCreated"
	MsgTypeTransportConnected    = "transportConnected"
	MsgTypeProduced              = "produced"
	MsgTypeProducerClosed        = "producerClosed"
	MsgTypeConsumed              = "consumed"
	MsgTypeConsumerResumed       = "consumerResumed"
	MsgTypeHostLeft              = "hostLeft"
	MsgTypePeerClosed            = "peerClosed"
	MsgTypeError                 = "error"
)

// Close codes for force-closed connections.
const (
	CloseSetupFailed = 4001 // fatal error during the connecting phase
	CloseSessionLost = 4002 // participant record vanished mid-session
)

// Envelope is the wire-level message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is an outbound envelope with an arbitrary payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ErrorMessage is sent to a client when handling a message fails. RequestType
// carries the inbound type that triggered the error, for correlation.
type ErrorMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	RequestType string `json:"requestType,omitempty"`
}

// NewErrorMessage creates an error message for the given request type.
func NewErrorMessage(message, requestType string) *ErrorMessage {
	return &ErrorMessage{
		Type:        MsgTypeError,
		Message:     message,
		RequestType: requestType,
	}
}

// Client -> Server payloads

// UpdateDisplayNameData renames the sending participant.
type UpdateDisplayNameData struct {
	DisplayName string `json:"displayName"`
}

// CreateTransportData asks the SFU for a new WebRTC transport.
type CreateTransportData struct {
	Purpose string `json:"purpose"`
}

// ConnectTransportData finalises DTLS for a transport.
type ConnectTransportData struct {
	TransportID    string          `json:"transportId"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

// ProduceData publishes a media track (host only).
type ProduceData struct {
	TransportID   string          `json:"transportId"`
	Kind          string          `json:"kind"`
	RtpParameters json.RawMessage `json:"rtpParameters"`
	AppData       map[string]any  `json:"appData"`
}

// CloseProducerData announces a closed producer (host only).
type CloseProducerData struct {
	ProducerID string `json:"producerId"`
}

// ConsumeData subscribes to a producer.
type ConsumeData struct {
	TransportID     string          `json:"transportId"`
	ProducerID      string          `json:"producerId"`
	RtpCapabilities json.RawMessage `json:"rtpCapabilities"`
	AppData         json.RawMessage `json:"appData"`
}

// ResumeConsumerData resumes a paused consumer.
type ResumeConsumerData struct {
	ConsumerID string `json:"consumerId"`
}

// Server -> Client payloads

// RoleAssignmentData tells a client its resolved role after connect.
type RoleAssignmentData struct {
	IsHost      bool   `json:"isHost"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

// HostInformationData identifies the room's current host to an attendee.
type HostInformationData struct {
	HostClientID    string `json:"hostClientId"`
	HostDisplayName string `json:"hostDisplayName"`
}

// NewProducerData announces a producer to the room.
type NewProducerData struct {
	ClientID   string `json:"clientId"`
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
	AppData    any    `json:"appData,omitempty"`
}

// DisplayNameUpdatedData confirms a rename.
type DisplayNameUpdatedData struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

// TransportConnectedData confirms DTLS completion.
type TransportConnectedData struct {
	TransportID string `json:"transportId"`
}

// ProducedData confirms producer creation to the producing client.
type ProducedData struct {
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
	ClientID   string `json:"clientId"`
}

// ProducerClosedData announces a closed producer to the room.
type ProducerClosedData struct {
	ClientID   string `json:"clientId"`
	ProducerID string `json:"producerId"`
}

// ConsumerResumedData confirms a consumer resume.
type ConsumerResumedData struct {
	ConsumerID string `json:"consumerId"`
}

// ClientIDData carries just a client id (hostLeft, peerClosed).
type ClientIDData struct {
	ClientID string `json:"clientId"`
}
