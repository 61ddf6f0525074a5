package setup

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// MigrateDB 迁移话题表结构
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.Topic{}); err != nil {
		logrus.Errorf("Failed to auto-migrate topics table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}

// SeedDefaultTopics 默认话题为空时写入 domain.DefaultTopicNames
func SeedDefaultTopics(ctx context.Context, topics repository.TopicRepository) error {
	count, err := topics.CountDefaults(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logrus.Debugf("Default topics already seeded (%d)", count)
		return nil
	}
	for _, t := range domain.DefaultTopics() {
		topic := t
		if err := topics.Save(ctx, &topic); err != nil {
			return fmt.Errorf("failed to seed default topic %s: %w", topic.Name, err)
		}
	}
	logrus.Infof("Seeded %d default topics", len(domain.DefaultTopicNames))
	return nil
}
