package domain

import (
	"encoding/json"
	"time"
)

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID                    string  `gorm:"type:varchar(36);primaryKey"`
	Name                  string  `gorm:"type:varchar(100);uniqueIndex;not null"`
	HostClientID          *string `gorm:"type:varchar(255)"`
	RouterRTPCapabilities []byte  `gorm:"type:text"`
	CreatedAt             time.Time
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:                    m.ID,
		Name:                  m.Name,
		HostClientID:          m.HostClientID,
		RouterRTPCapabilities: json.RawMessage(m.RouterRTPCapabilities),
		CreatedAt:             m.CreatedAt,
	}
}

// ParticipantModel is the GORM model for the participants table.
// client_id is unique across all rooms, not per room.
type ParticipantModel struct {
	ID          uint      `gorm:"primaryKey"`
	ClientID    string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	RoomID      string    `gorm:"type:varchar(36);index;not null"`
	Room        RoomModel `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	DisplayName string    `gorm:"type:varchar(100);not null"`
	IsHost      bool      `gorm:"not null;default:false"`
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "participants"
}

// ToDomain converts ParticipantModel to domain Participant.
func (m *ParticipantModel) ToDomain() *Participant {
	return &Participant{
		ClientID:    m.ClientID,
		RoomID:      m.RoomID,
		DisplayName: m.DisplayName,
		IsHost:      m.IsHost,
		JoinedAt:    m.JoinedAt,
	}
}
