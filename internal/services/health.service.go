package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
)

type HealthService struct {
	db *pg.DB
}

func NewHealthService(db *pg.DB) *HealthService {
	return &HealthService{db: db}
}

// Get reports liveness; the read connection must answer a ping.
func (s *HealthService) Get() error {
	if s.db == nil {
		return errors.New("database not configured")
	}
	sqlDB, err := s.db.Read(context.Background()).DB()
	if err != nil {
		return errors.Wrap(err, "resolve sql db")
	}
	return sqlDB.Ping()
}
