package database

import (
	"time"

	"go.uber.org/zap"

	"github.com/jhjj/staychat/internal/models"
)

// Sweeper физически удаляет истекшие DM-комнаты и сообщения. Это чистая
// уборка места: все пути чтения и так проверяют expires_at сами,
// корректность от интервала не зависит
type Sweeper struct {
	db       *Database
	interval time.Duration
	logger   *zap.SugaredLogger
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(db *Database, interval time.Duration, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		db:       db,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep() {
	now := time.Now()

	rooms := s.db.db.
		Where("kind = ? AND expires_at <= ?", models.RoomKindDM, now).
		Delete(&models.Room{})
	if rooms.Error != nil {
		s.logger.Errorw("sweep rooms", "error", rooms.Error)
	}

	messages := s.db.db.
		Where("expires_at <= ?", now).
		Delete(&models.Message{})
	if messages.Error != nil {
		s.logger.Errorw("sweep messages", "error", messages.Error)
	}

	if rooms.RowsAffected > 0 || messages.RowsAffected > 0 {
		s.logger.Infow("swept expired records",
			"rooms", rooms.RowsAffected,
			"messages", messages.RowsAffected)
	}
}
