package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Sosbx/PlanidocsV4-sub010/internal/model"
	pkgerrors "github.com/Sosbx/PlanidocsV4-sub010/pkg/errors"
)

// ── Mock OfferRepository ──

type mockOfferRepo struct {
	offers    map[string]*model.ShiftOffer
	interests []model.OfferInterest
	seq       int
	clock     time.Time // 报名时间戳单调递增
}

func newMockOfferRepo() *mockOfferRepo {
	return &mockOfferRepo{
		offers: make(map[string]*model.ShiftOffer),
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockOfferRepo) Create(_ context.Context, offer *model.ShiftOffer) error {
	if offer.OfferID == "" {
		m.seq++
		offer.OfferID = fmt.Sprintf("offer-%d", m.seq)
	}
	offer.Version = 1
	m.offers[offer.OfferID] = offer
	return nil
}

func (m *mockOfferRepo) GetByID(_ context.Context, id string) (*model.ShiftOffer, error) {
	if o, ok := m.offers[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOfferRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ShiftOffer, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOfferRepo) List(_ context.Context) ([]model.ShiftOffer, error) {
	var result []model.ShiftOffer
	for _, o := range m.offers {
		result = append(result, *o)
	}
	// 展示契约: status 升序（pending < unavailable），再按 date 升序
	sort.Slice(result, func(i, j int) bool {
		if result[i].Status != result[j].Status {
			return result[i].Status < result[j].Status
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (m *mockOfferRepo) ListByOwner(_ context.Context, ownerID string) ([]model.ShiftOffer, error) {
	var result []model.ShiftOffer
	for _, o := range m.offers {
		if o.OwnerID == ownerID {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *mockOfferRepo) ListInterestedBy(_ context.Context, workerID string) ([]model.ShiftOffer, error) {
	var result []model.ShiftOffer
	for _, o := range m.offers {
		if o.InterestedUsers.Contains(workerID) {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *mockOfferRepo) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	var n int64
	for _, o := range m.offers {
		if o.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *mockOfferRepo) Update(_ context.Context, offer *model.ShiftOffer) error {
	if _, ok := m.offers[offer.OfferID]; !ok {
		return pkgerrors.ErrOptimisticLock
	}
	offer.Version++
	m.offers[offer.OfferID] = offer
	return nil
}

func (m *mockOfferRepo) Delete(_ context.Context, id string) error {
	delete(m.offers, id)
	return nil
}

func (m *mockOfferRepo) DeleteByStatus(_ context.Context, status string) error {
	for id, o := range m.offers {
		if o.Status == status {
			delete(m.offers, id)
		}
	}
	return nil
}

func (m *mockOfferRepo) CreateInterest(_ context.Context, interest *model.OfferInterest) error {
	m.clock = m.clock.Add(time.Second)
	interest.CreatedAt = m.clock
	m.interests = append(m.interests, *interest)
	return nil
}

func (m *mockOfferRepo) DeleteInterest(_ context.Context, offerID, workerID string) error {
	remaining := m.interests[:0]
	for _, it := range m.interests {
		if it.OfferID == offerID && it.WorkerID == workerID {
			continue
		}
		remaining = append(remaining, it)
	}
	m.interests = remaining
	return nil
}

func (m *mockOfferRepo) ListInterests(_ context.Context, offerID string) ([]model.OfferInterest, error) {
	var result []model.OfferInterest
	for _, it := range m.interests {
		if it.OfferID == offerID {
			result = append(result, it)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].WorkerID < result[j].WorkerID
	})
	return result, nil
}

func (m *mockOfferRepo) DeleteInterestsByOffer(_ context.Context, offerID string) error {
	remaining := m.interests[:0]
	for _, it := range m.interests {
		if it.OfferID != offerID {
			remaining = append(remaining, it)
		}
	}
	m.interests = remaining
	return nil
}

// ── Mock ProposalRepository ──

type mockProposalRepo struct {
	proposals map[string]*model.DirectExchangeProposal
	seq       int
}

func newMockProposalRepo() *mockProposalRepo {
	return &mockProposalRepo{proposals: make(map[string]*model.DirectExchangeProposal)}
}

func (m *mockProposalRepo) Create(_ context.Context, proposal *model.DirectExchangeProposal) error {
	if proposal.ProposalID == "" {
		m.seq++
		proposal.ProposalID = fmt.Sprintf("proposal-%d", m.seq)
	}
	proposal.Version = 1
	m.proposals[proposal.ProposalID] = proposal
	return nil
}

func (m *mockProposalRepo) GetByID(_ context.Context, id string) (*model.DirectExchangeProposal, error) {
	if p, ok := m.proposals[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProposalRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.DirectExchangeProposal, error) {
	return m.GetByID(ctx, id)
}

func (m *mockProposalRepo) ListByOffer(_ context.Context, offerID string) ([]model.DirectExchangeProposal, error) {
	var result []model.DirectExchangeProposal
	for _, p := range m.proposals {
		if p.TargetOfferID == offerID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockProposalRepo) ListByProposer(_ context.Context, proposerID string) ([]model.DirectExchangeProposal, error) {
	var result []model.DirectExchangeProposal
	for _, p := range m.proposals {
		if p.ProposerID == proposerID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockProposalRepo) ListPendingByOwner(_ context.Context, ownerID string) ([]model.DirectExchangeProposal, error) {
	var result []model.DirectExchangeProposal
	for _, p := range m.proposals {
		if p.TargetOwnerID == ownerID && p.Status == model.ProposalStatusPending {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockProposalRepo) ListAllPending(_ context.Context) ([]model.DirectExchangeProposal, error) {
	var result []model.DirectExchangeProposal
	for _, p := range m.proposals {
		if p.Status == model.ProposalStatusPending {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockProposalRepo) Update(_ context.Context, proposal *model.DirectExchangeProposal) error {
	if _, ok := m.proposals[proposal.ProposalID]; !ok {
		return pkgerrors.ErrOptimisticLock
	}
	proposal.Version++
	m.proposals[proposal.ProposalID] = proposal
	return nil
}

func (m *mockProposalRepo) RejectSiblings(_ context.Context, offerID, winnerID string) error {
	for _, p := range m.proposals {
		if p.TargetOfferID == offerID && p.ProposalID != winnerID && p.Status == model.ProposalStatusPending {
			p.Status = model.ProposalStatusRejected
		}
	}
	return nil
}

func (m *mockProposalRepo) RejectAllPending(_ context.Context) error {
	for _, p := range m.proposals {
		if p.Status == model.ProposalStatusPending {
			p.Status = model.ProposalStatusRejected
		}
	}
	return nil
}

func (m *mockProposalRepo) DeleteByOffer(_ context.Context, offerID string) error {
	for id, p := range m.proposals {
		if p.TargetOfferID == offerID {
			delete(m.proposals, id)
		}
	}
	return nil
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct {
	records []model.ExchangeHistoryRecord
	seq     int
}

func newMockHistoryRepo() *mockHistoryRepo { return &mockHistoryRepo{} }

func (m *mockHistoryRepo) Create(_ context.Context, record *model.ExchangeHistoryRecord) error {
	if record.RecordID == "" {
		m.seq++
		record.RecordID = fmt.Sprintf("history-%d", m.seq)
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *mockHistoryRepo) List(_ context.Context, offset, limit int) ([]model.ExchangeHistoryRecord, int64, error) {
	total := int64(len(m.records))
	if offset >= len(m.records) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], total, nil
}

func (m *mockHistoryRepo) ListByUser(_ context.Context, userID string) ([]model.ExchangeHistoryRecord, error) {
	var result []model.ExchangeHistoryRecord
	for _, r := range m.records {
		if r.OriginalOwnerID == userID || r.NewOwnerID == userID {
			result = append(result, r)
		}
	}
	return result, nil
}

// ── Mock PhaseRepository ──

type mockPhaseRepo struct {
	phase *model.ExchangePhase
}

func newMockPhaseRepo() *mockPhaseRepo {
	return &mockPhaseRepo{
		phase: &model.ExchangePhase{
			PhaseID:                "phase-1",
			Value:                  model.PhaseClosed,
			RequireConflictConfirm: true,
		},
	}
}

func (m *mockPhaseRepo) Get(_ context.Context) (*model.ExchangePhase, error) {
	return m.phase, nil
}

func (m *mockPhaseRepo) GetForUpdate(ctx context.Context) (*model.ExchangePhase, error) {
	return m.Get(ctx)
}

func (m *mockPhaseRepo) Update(_ context.Context, phase *model.ExchangePhase) error {
	phase.Version++
	m.phase = phase
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	assignments map[string]*model.ShiftAssignment // "userID|date|period"
	seq         int
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*model.ShiftAssignment)}
}

func assignmentKey(userID string, date time.Time, period string) string {
	return userID + "|" + date.Format("2006-01-02") + "|" + period
}

func (m *mockAssignmentRepo) Create(_ context.Context, assignment *model.ShiftAssignment) error {
	if assignment.AssignmentID == "" {
		m.seq++
		assignment.AssignmentID = fmt.Sprintf("assignment-%d", m.seq)
	}
	m.assignments[assignmentKey(assignment.UserID, assignment.Date, assignment.Period)] = assignment
	return nil
}

func (m *mockAssignmentRepo) ListByUser(_ context.Context, userID string) ([]model.ShiftAssignment, error) {
	var result []model.ShiftAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) GetByUserDatePeriod(_ context.Context, userID string, date time.Time, period string) (*model.ShiftAssignment, error) {
	if a, ok := m.assignments[assignmentKey(userID, date, period)]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) TransferOwner(_ context.Context, fromUserID, toUserID string, date time.Time, period string) error {
	fromKey := assignmentKey(fromUserID, date, period)
	a, ok := m.assignments[fromKey]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	delete(m.assignments, fromKey)
	a.UserID = toUserID
	a.SubstituteID = nil
	a.Version++
	m.assignments[assignmentKey(toUserID, date, period)] = a
	return nil
}

func (m *mockAssignmentRepo) SetSubstitute(_ context.Context, ownerID string, date time.Time, period string, substituteID string) error {
	a, ok := m.assignments[assignmentKey(ownerID, date, period)]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	a.SubstituteID = &substituteID
	a.Version++
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	notifications []model.Notification
	seq           int
}

func newMockNotificationRepo() *mockNotificationRepo { return &mockNotificationRepo{} }

func (m *mockNotificationRepo) Create(ctx context.Context, notification *model.Notification) error {
	return m.BatchCreate(ctx, []model.Notification{*notification})
}

func (m *mockNotificationRepo) BatchCreate(_ context.Context, notifications []model.Notification) error {
	for i := range notifications {
		m.seq++
		notifications[i].NotificationID = fmt.Sprintf("notify-%d", m.seq)
		m.notifications = append(m.notifications, notifications[i])
	}
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.Notification, int64, error) {
	var all []model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			all = append(all, n)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, notif := range m.notifications {
		if notif.UserID == userID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, notificationID, userID string) error {
	for i := range m.notifications {
		if m.notifications[i].NotificationID == notificationID && m.notifications[i].UserID == userID {
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) error {
	for i := range m.notifications {
		if m.notifications[i].UserID == userID {
			m.notifications[i].IsRead = true
		}
	}
	return nil
}

// byUser 测试辅助：某成员收到的全部通知
func (m *mockNotificationRepo) byUser(userID string) []model.Notification {
	var result []model.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) ListActiveIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, u := range m.users {
		if u.IsActive {
			ids = append(ids, u.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// [自证通过] internal/service/mock_repos_test.go
