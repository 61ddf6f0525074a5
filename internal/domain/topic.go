package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic 是玩家每回合需要作答的类别。
// 同一结构既存放在房间快照中，也作为话题目录的数据库模型。
type Topic struct {
	ID              uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_topic_owner_name" json:"name"`
	IsDefault       bool       `gorm:"not null;default:false;index" json:"is_default"`
	CreatedByUserID *uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_topic_owner_name" json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DefaultTopicNames 默认话题，迁移时写入话题目录
var DefaultTopicNames = []string{
	"Animal", "Country", "City", "Food", "Color",
	"Name", "Profession", "Movie", "Brand", "Sport",
}

func NewTopic(name string, isDefault bool, createdBy *uuid.UUID) Topic {
	return Topic{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(name),
		IsDefault:       isDefault,
		CreatedByUserID: createdBy,
		CreatedAt:       time.Now().UTC(),
	}
}

// DefaultTopics 构造一组新的默认话题
func DefaultTopics() []Topic {
	topics := make([]Topic, 0, len(DefaultTopicNames))
	for _, name := range DefaultTopicNames {
		topics = append(topics, NewTopic(name, true, nil))
	}
	return topics
}

// UniqueTopics 按名称（忽略大小写、去除首尾空白）去重，保留首次出现的顺序，丢弃空名称。
func UniqueTopics(topics []Topic) []Topic {
	seen := make(map[string]struct{}, len(topics))
	out := make([]Topic, 0, len(topics))
	for _, t := range topics {
		key := normalize(t.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
