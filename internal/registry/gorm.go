package registry

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// GormStore persists rooms in postgres via gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Room{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, room *Room) error {
	now := time.Now()
	room.CreatedAt = now
	room.LastActivity = now
	return s.db.WithContext(ctx).Create(room).Error
}

func (s *GormStore) Get(ctx context.Context, code string) (*Room, error) {
	var room Room
	err := s.db.WithContext(ctx).First(&room, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *GormStore) Save(ctx context.Context, room *Room) error {
	room.LastActivity = time.Now()
	res := s.db.WithContext(ctx).Save(room)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Delete(&Room{}, "code = ?", code).Error
}

func (s *GormStore) DeleteIdle(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&Room{}, "last_activity < ?", olderThan)
	return res.RowsAffected, res.Error
}
