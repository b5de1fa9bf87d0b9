package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mikey786/Mediasoup/internal/domain"
	"github.com/Mikey786/Mediasoup/pkg/log"
)

const (
	hostDisplayName   = "Host"
	minDisplayName    = 3
	maxDisplayName    = 25
	defaultNamePrefix = "User-"
)

// GormDirectory implements Directory using GORM.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GORM-based room directory.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// locked adds a FOR UPDATE clause on engines that support it. sqlite rejects
// the syntax; its single-writer lock serializes these transactions anyway.
func (d *GormDirectory) locked(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// DefaultDisplayName is the fallback name for a client with no stored record.
func DefaultDisplayName(clientID string) string {
	prefix := clientID
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return defaultNamePrefix + prefix
}

func (d *GormDirectory) ResolveOnConnect(ctx context.Context, roomName, clientID string) (*ConnectResolution, error) {
	l := log.Ctx(ctx)

	var res *ConnectResolution
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.RoomModel
		created := false

		err := d.locked(tx).Where("name = ?", roomName).First(&room).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			host := clientID
			room = domain.RoomModel{ID: uuid.New().String(), Name: roomName, HostClientID: &host}
			if cerr := tx.Create(&room).Error; cerr != nil {
				// Lost the create race: another first-connect inserted the
				// room. Reload it and run the normal election below.
				if ferr := d.locked(tx).Where("name = ?", roomName).First(&room).Error; ferr != nil {
					return fmt.Errorf("create room %q: %w", roomName, cerr)
				}
			} else {
				created = true
			}
		case err != nil:
			return err
		}

		isHost := false
		displayName := DefaultDisplayName(clientID)

		switch {
		case created:
			isHost = true
			displayName = hostDisplayName
		case room.HostClientID == nil || *room.HostClientID == "":
			isHost = true
			displayName = hostDisplayName
			if err := setRoomHost(tx, room.ID, &clientID); err != nil {
				return err
			}
			host := clientID
			room.HostClientID = &host
		case *room.HostClientID == clientID:
			isHost = true
			displayName = storedDisplayName(tx, room.ID, clientID, hostDisplayName)
		default:
			displayName = storedDisplayName(tx, room.ID, clientID, displayName)
		}

		participant, err := upsertParticipant(tx, room.ID, clientID, displayName, isHost)
		if err != nil {
			return err
		}

		res = &ConnectResolution{
			Room:        room.ToDomain(),
			Participant: participant.ToDomain(),
			IsHost:      isHost,
			DisplayName: displayName,
		}
		return nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, roomName).Str(log.FieldClientID, clientID).Msg("connect resolution failed")
		return nil, err
	}

	l.Debug().
		Str(log.FieldRoom, roomName).
		Str(log.FieldClientID, clientID).
		Bool("is_host", res.IsHost).
		Str("display_name", res.DisplayName).
		Msg("connect resolved")
	return res, nil
}

// storedDisplayName returns the display name a client previously used in this
// room, or fallback if no record exists.
func storedDisplayName(tx *gorm.DB, roomID, clientID, fallback string) string {
	var p domain.ParticipantModel
	err := tx.Where("client_id = ? AND room_id = ?", clientID, roomID).First(&p).Error
	if err != nil {
		return fallback
	}
	return p.DisplayName
}

// upsertParticipant creates or updates the participant keyed by client_id.
// This is where a client_id reused under a different room migrates its record.
func upsertParticipant(tx *gorm.DB, roomID, clientID, displayName string, isHost bool) (*domain.ParticipantModel, error) {
	var p domain.ParticipantModel
	err := tx.Where("client_id = ?", clientID).First(&p).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = domain.ParticipantModel{
			ClientID:    clientID,
			RoomID:      roomID,
			DisplayName: displayName,
			IsHost:      isHost,
		}
		if err := tx.Create(&p).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		p.RoomID = roomID
		p.DisplayName = displayName
		p.IsHost = isHost
		if err := tx.Model(&domain.ParticipantModel{}).Where("client_id = ?", clientID).
			Updates(map[string]interface{}{
				"room_id":      roomID,
				"display_name": displayName,
				"is_host":      isHost,
			}).Error; err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func setRoomHost(tx *gorm.DB, roomID string, hostClientID *string) error {
	return tx.Model(&domain.RoomModel{}).Where("id = ?", roomID).
		Update("host_client_id", hostClientID).Error
}

func (d *GormDirectory) Retire(ctx context.Context, clientID string) (*domain.Room, bool, error) {
	l := log.Ctx(ctx)

	var room *domain.Room
	hostLeft := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.ParticipantModel
		if err := tx.Where("client_id = ?", clientID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var rm domain.RoomModel
		if err := d.locked(tx).Where("id = ?", p.RoomID).First(&rm).Error; err != nil {
			return err
		}

		if err := tx.Where("client_id = ?", clientID).Delete(&domain.ParticipantModel{}).Error; err != nil {
			return err
		}

		// Clear the room's host only if this client is still the recorded
		// host; a rejoin election may already have reassigned it.
		if p.IsHost && rm.HostClientID != nil && *rm.HostClientID == clientID {
			if err := setRoomHost(tx, rm.ID, nil); err != nil {
				return err
			}
			rm.HostClientID = nil
			hostLeft = true
		}

		room = rm.ToDomain()
		return nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldClientID, clientID).Msg("retire failed")
		return nil, false, err
	}
	if room != nil {
		l.Debug().Str(log.FieldClientID, clientID).Str(log.FieldRoom, room.Name).Bool("host_left", hostLeft).Msg("participant retired")
	}
	return room, hostLeft, nil
}

func (d *GormDirectory) SetDisplayName(ctx context.Context, clientID, name string) (*domain.Participant, error) {
	name = strings.TrimSpace(name)
	if len(name) < minDisplayName || len(name) > maxDisplayName {
		return nil, ErrInvalidDisplayName
	}

	var p domain.ParticipantModel
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParticipantNotFound
			}
			return err
		}
		p.DisplayName = name
		return tx.Model(&domain.ParticipantModel{}).Where("client_id = ?", clientID).
			Update("display_name", name).Error
	})
	if err != nil {
		return nil, err
	}
	return p.ToDomain(), nil
}

func (d *GormDirectory) ListParticipants(ctx context.Context, roomID string) ([]domain.ParticipantInfo, error) {
	var models []domain.ParticipantModel
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("is_host DESC, display_name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	infos := make([]domain.ParticipantInfo, len(models))
	for i, m := range models {
		infos[i] = domain.ParticipantInfo{
			ClientID:    m.ClientID,
			DisplayName: m.DisplayName,
			IsHost:      m.IsHost,
		}
	}
	return infos, nil
}

func (d *GormDirectory) IsHost(ctx context.Context, clientID string) (bool, error) {
	var p domain.ParticipantModel
	err := d.db.WithContext(ctx).Select("is_host").Where("client_id = ?", clientID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsHost, nil
}

func (d *GormDirectory) HostParticipant(ctx context.Context, room *domain.Room) (*domain.Participant, error) {
	if room == nil || !room.HasHost() {
		return nil, ErrParticipantNotFound
	}

	var p domain.ParticipantModel
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND client_id = ? AND is_host = ?", room.ID, *room.HostClientID, true).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p.ToDomain(), nil
}

func (d *GormDirectory) SaveRouterRTPCapabilities(ctx context.Context, roomID string, caps json.RawMessage) error {
	if len(caps) == 0 {
		return errors.New("empty rtp capabilities")
	}
	result := d.db.WithContext(ctx).Model(&domain.RoomModel{}).Where("id = ?", roomID).
		Update("router_rtp_capabilities", []byte(caps))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (d *GormDirectory) RoomByName(ctx context.Context, name string) (*domain.Room, error) {
	var m domain.RoomModel
	err := d.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}
