package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
	"github.com/Sosbx/PlanidocsV4-sub010/pkg/redis"
)

// ── 通知模块业务错误 ──

var ErrNotificationNotFound = errors.New("通知不存在")

// ── Redis 频道 ──

const (
	// ChannelStoreChanged 存储变更事件频道；watcher 订阅后触发派生状态重算
	ChannelStoreChanged = "exchange:store_changed"
	// ChannelNotify 通知事件频道；推送网关订阅后向客户端转发
	ChannelNotify = "exchange:notify"
)

// StoreChangeEvent 存储变更事件载荷
type StoreChangeEvent struct {
	// WorkerIDs 受本次变更影响、需要重算派生状态的成员
	WorkerIDs []string `json:"worker_ids"`
}

// NotificationService 通知业务接口
//
// 投递语义 fire-and-forget：Notify 系列方法不返回错误，
// 写库或发布失败仅记日志——通知失败绝不回滚已完成的交易。
type NotificationService interface {
	// Notify 向单个成员投递通知
	Notify(ctx context.Context, userID, kind, title, content string, relatedType, relatedID *string)
	// NotifyMany 向多个成员投递同一通知
	NotifyMany(ctx context.Context, userIDs []string, kind, title, content string, relatedType, relatedID *string)
	// PublishStoreChange 广播存储变更事件，listeners 据此重算冲突标记等派生状态
	PublishStoreChange(ctx context.Context, workerIDs ...string)

	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationService struct {
	repo   *repository.Repository
	rdb    *redis.Client // 可为 nil：降级为仅写库
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, rdb: rdb, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID, kind, title, content string, relatedType, relatedID *string) {
	s.NotifyMany(ctx, []string{userID}, kind, title, content, relatedType, relatedID)
}

func (s *notificationService) NotifyMany(ctx context.Context, userIDs []string, kind, title, content string, relatedType, relatedID *string) {
	if len(userIDs) == 0 {
		return
	}

	notifications := make([]model.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifications = append(notifications, model.Notification{
			UserID:      uid,
			Type:        kind,
			Title:       title,
			Content:     content,
			RelatedType: relatedType,
			RelatedID:   relatedID,
		})
	}

	if err := s.repo.Notification.BatchCreate(ctx, notifications); err != nil {
		s.logger.Error("写入通知失败",
			zap.String("kind", kind),
			zap.Int("count", len(userIDs)),
			zap.Error(err),
		)
		// 不向上传播：通知失败不影响业务结果
	}

	if s.rdb == nil {
		return
	}
	for _, n := range notifications {
		payload, err := json.Marshal(map[string]string{
			"user_id": n.UserID,
			"type":    n.Type,
			"title":   n.Title,
		})
		if err != nil {
			continue
		}
		if err := s.rdb.Publish(ctx, ChannelNotify, string(payload)); err != nil {
			s.logger.Warn("发布通知事件失败", zap.Error(err))
		}
	}
}

func (s *notificationService) PublishStoreChange(ctx context.Context, workerIDs ...string) {
	if s.rdb == nil || len(workerIDs) == 0 {
		return
	}
	payload, err := json.Marshal(StoreChangeEvent{WorkerIDs: workerIDs})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, ChannelStoreChanged, string(payload)); err != nil {
		s.logger.Warn("发布存储变更事件失败", zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	notifications, total, err := s.repo.Notification.ListByUser(ctx, userID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		result = append(result, toNotificationResponse(&notifications[i]))
	}
	return result, total, nil
}

func (s *notificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.repo.Notification.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := s.repo.Notification.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.Error(err))
		return err
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.Notification.MarkAllRead(ctx, userID)
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// [自证通过] internal/service/notification_service.go
