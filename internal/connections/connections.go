package connections

import (
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSelfConnection is returned when a user tries to befriend themselves.
var ErrSelfConnection = errors.New("cannot connect a user to themselves")

// State is the outcome of a friend request.
type State string

const (
	StatePending   State = "pending"
	StateConnected State = "connected"
)

// Connection is one direction of a friendship. Each friendship is stored as
// two rows so lookups never need an OR.
type Connection struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_connections_pair" json:"user_id"`
	FriendID  uint      `gorm:"not null;uniqueIndex:idx_connections_pair;index" json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// Request is a friend request waiting for the target to answer.
// It grants nothing until accepted.
type Request struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID uint      `gorm:"not null;uniqueIndex:idx_connection_requests_pair" json:"requester_id"`
	TargetID    uint      `gorm:"not null;uniqueIndex:idx_connection_requests_pair;index" json:"target_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Request) TableName() string {
	return "connection_requests"
}

func addPair(tx *gorm.DB, a, b uint) error {
	now := time.Now().UTC()
	rows := []Connection{
		{UserID: a, FriendID: b, CreatedAt: now},
		{UserID: b, FriendID: a, CreatedAt: now},
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// RequestFriendship asks to connect from with to. When to has already asked
// from, the two requests meet and the friendship is created.
func RequestFriendship(db *gorm.DB, from, to uint) (State, error) {
	if from == to {
		return "", ErrSelfConnection
	}
	state := StatePending
	err := sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		var friends int64
		if err := tx.Model(&Connection{}).Where("user_id = ? AND friend_id = ?", from, to).Count(&friends).Error; err != nil {
			return err
		}
		if friends > 0 {
			state = StateConnected
			return nil
		}

		reverse := tx.Where("requester_id = ? AND target_id = ?", to, from).Delete(&Request{})
		if reverse.Error != nil {
			return reverse.Error
		}
		if reverse.RowsAffected > 0 {
			state = StateConnected
			return addPair(tx, from, to)
		}

		req := Request{RequesterID: from, TargetID: to, CreatedAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&req).Error
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// Accept turns the pending request from requesterID to userID into a friendship.
// It returns gorm.ErrRecordNotFound when no such request exists.
func Accept(db *gorm.DB, userID, requesterID uint) error {
	return sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		res := tx.Where("requester_id = ? AND target_id = ?", requesterID, userID).Delete(&Request{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return addPair(tx, userID, requesterID)
	})
}

// Decline drops the pending request from requesterID to userID.
func Decline(db *gorm.DB, userID, requesterID uint) error {
	return sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		res := tx.Where("requester_id = ? AND target_id = ?", requesterID, userID).Delete(&Request{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListIncoming returns the requests waiting for userID to answer, oldest first.
func ListIncoming(db *gorm.DB, userID uint) ([]Request, error) {
	reqs := []Request{}
	err := db.Where("target_id = ?", userID).Order("created_at ASC, id ASC").Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Remove disconnects a and b in both directions and withdraws any request between them.
func Remove(db *gorm.DB, a, b uint) error {
	return sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		if err := tx.Where("(requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)", a, b, b, a).
			Delete(&Request{}).Error; err != nil {
			return err
		}
		return tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
			Delete(&Connection{}).Error
	})
}

// RemoveAll drops every connection and request involving userID.
func RemoveAll(db *gorm.DB, userID uint) error {
	return sqlite.PerformWrite(slog.Default(), db, func(tx *gorm.DB) error {
		if err := tx.Where("requester_id = ? OR target_id = ?", userID, userID).Delete(&Request{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? OR friend_id = ?", userID, userID).Delete(&Connection{}).Error
	})
}

// AreFriends reports whether a and b are connected. Pending requests do not count.
func AreFriends(db *gorm.DB, a, b uint) (bool, error) {
	if a == 0 || b == 0 || a == b {
		return false, nil
	}
	var count int64
	err := db.Model(&Connection{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListFriends returns the IDs of every user connected to userID, oldest first.
func ListFriends(db *gorm.DB, userID uint) ([]uint, error) {
	ids := []uint{}
	err := db.Model(&Connection{}).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
