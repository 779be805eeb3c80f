package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Abin2112/Greencycle-sub000/models"
)

func newTestMatchingService(t *testing.T) *MatchingService {
	t.Helper()
	return &MatchingService{DB: newTestDB(t), Config: newTestConfig()}
}

func TestRankCandidatesFiltersAndOrders(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	// 赤道上经度每 0.1 度约 11.1 千米
	near := createTestOrganization(t, s.DB, "近站", 0, 0.1, 50, "phone,laptop", 10, 3.0)
	far := createTestOrganization(t, s.DB, "远站", 0, 0.2, 50, "phone", 10, 5.0)

	// 以下机构都应被过滤掉
	unverified := createTestOrganization(t, s.DB, "未认证", 0, 0.05, 50, "phone", 10, 5.0)
	s.DB.Model(unverified).Update("verification_status", models.VerificationStatusUnverified)
	createTestOrganization(t, s.DB, "类别不符", 0, 0.05, 50, "battery", 10, 5.0)
	createTestOrganization(t, s.DB, "超出半径", 0, 0.1, 5, "phone", 10, 5.0)
	exhausted := createTestOrganization(t, s.DB, "容量耗尽", 0, 0.05, 50, "phone", 10, 5.0)
	s.DB.Model(exhausted).Update("remaining_capacity", 0)

	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	candidates, err := s.RankCandidates(device, 0, 0)
	if err != nil {
		t.Fatalf("候选排序失败: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("应有 2 名候选，实际为 %d", len(candidates))
	}
	if candidates[0].Organization.ID != near.ID {
		t.Errorf("距离更近的机构应排第一，实际为 %s", candidates[0].Organization.Name)
	}
	if candidates[1].Organization.ID != far.ID {
		t.Errorf("第二名应为远站，实际为 %s", candidates[1].Organization.Name)
	}
	if candidates[0].DistanceKM <= 0 || candidates[0].DistanceKM >= candidates[1].DistanceKM {
		t.Errorf("距离应严格递增: %.2f, %.2f", candidates[0].DistanceKM, candidates[1].DistanceKM)
	}
}

func TestRankCandidatesTieBreaksByRatingThenAge(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	// 三家机构同一位置：距离相同，先比评分，再比建档时间
	lowRating := createTestOrganization(t, s.DB, "低分站", 0, 0.1, 50, "phone", 10, 2.0)
	highRating := createTestOrganization(t, s.DB, "高分站", 0, 0.1, 50, "phone", 10, 4.5)
	younger := createTestOrganization(t, s.DB, "同分新站", 0, 0.1, 50, "phone", 10, 4.5)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.DB.Model(highRating).Update("created_at", base)
	s.DB.Model(younger).Update("created_at", base.Add(24*time.Hour))

	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	candidates, err := s.RankCandidates(device, 0, 0)
	if err != nil {
		t.Fatalf("候选排序失败: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("应有 3 名候选，实际为 %d", len(candidates))
	}

	if candidates[0].Organization.ID != highRating.ID {
		t.Errorf("同距离下评分高者应排第一，实际为 %s", candidates[0].Organization.Name)
	}
	if candidates[1].Organization.ID != younger.ID {
		t.Errorf("同距离同评分下建档早者优先，第二名应为同分新站，实际为 %s", candidates[1].Organization.Name)
	}
	if candidates[2].Organization.ID != lowRating.ID {
		t.Errorf("评分最低者应排最后，实际为 %s", candidates[2].Organization.Name)
	}
}

func TestRequestMatchReservesCapacityAtomically(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0.1, 50, "phone", 3, 4.0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	matched, err := s.RequestMatch(device.ID)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}

	if matched.ID != org.ID {
		t.Errorf("应匹配机构 %d，实际为 %d", org.ID, matched.ID)
	}
	if matched.RemainingCapacity != 2 {
		t.Errorf("返回的机构剩余容量应为 2，实际为 %d", matched.RemainingCapacity)
	}
	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 2 {
		t.Errorf("库中机构剩余容量应为 2，实际为 %d", got)
	}

	updated := reloadDevice(t, s.DB, device.ID)
	if updated.Status != models.DeviceStatusMatched {
		t.Errorf("匹配后设备状态应为 matched，实际为 %s", updated.Status)
	}
	if updated.OrganizationID == nil || *updated.OrganizationID != org.ID {
		t.Error("匹配后设备应指向预留的机构")
	}
}

func TestRequestMatchFallsBackToNextCandidate(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	nearest := createTestOrganization(t, s.DB, "近站", 0, 0.1, 50, "phone", 10, 4.0)
	s.DB.Model(nearest).Update("remaining_capacity", 0)
	fallback := createTestOrganization(t, s.DB, "备选站", 0, 0.2, 50, "phone", 10, 4.0)

	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	matched, err := s.RequestMatch(device.ID)
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if matched.ID != fallback.ID {
		t.Errorf("近站无容量时应匹配备选站，实际为 %s", matched.Name)
	}
}

func TestRequestMatchRequiresAwaitingMatchStatus(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	createTestOrganization(t, s.DB, "回收站A", 0, 0.1, 50, "phone", 10, 4.0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusUploaded, nil)

	if _, err := s.RequestMatch(device.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("非待匹配状态应返回 ErrInvalidTransition，实际为 %v", err)
	}
}

func TestRequestMatchNoEligibleOrganization(t *testing.T) {
	s := newTestMatchingService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	// 只有一家超出服务半径的机构
	createTestOrganization(t, s.DB, "太远", 10, 10, 5, "phone", 10, 4.0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	if _, err := s.RequestMatch(device.ID); !errors.Is(err, ErrNoEligibleOrganization) {
		t.Errorf("没有合格机构时应返回 ErrNoEligibleOrganization，实际为 %v", err)
	}

	// 匹配失败不应改变设备状态
	if got := reloadDevice(t, s.DB, device.ID).Status; got != models.DeviceStatusAwaitingMatch {
		t.Errorf("匹配失败后设备应保持 awaiting_match，实际为 %s", got)
	}
}

func TestReserveAndReleaseOrganizationCapacity(t *testing.T) {
	s := newTestMatchingService(t)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 2, 4.0)

	if err := reserveOrganizationCapacity(s.DB, org.ID); err != nil {
		t.Fatalf("第一次预留失败: %v", err)
	}
	if err := reserveOrganizationCapacity(s.DB, org.ID); err != nil {
		t.Fatalf("第二次预留失败: %v", err)
	}
	if err := reserveOrganizationCapacity(s.DB, org.ID); !errors.Is(err, ErrCapacityExhausted) {
		t.Errorf("容量耗尽后预留应返回 ErrCapacityExhausted，实际为 %v", err)
	}
	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 0 {
		t.Errorf("剩余容量不应变为负数，实际为 %d", got)
	}

	if err := releaseOrganizationCapacity(s.DB, org.ID); err != nil {
		t.Fatalf("归还容量失败: %v", err)
	}
	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 1 {
		t.Errorf("归还后剩余容量应为 1，实际为 %d", got)
	}

	// 归还有上界：剩余容量不会超过月度容量
	releaseOrganizationCapacity(s.DB, org.ID)
	releaseOrganizationCapacity(s.DB, org.ID)
	releaseOrganizationCapacity(s.DB, org.ID)
	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 2 {
		t.Errorf("剩余容量不应超过月度容量 2，实际为 %d", got)
	}
}
