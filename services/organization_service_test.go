package services

import (
	"testing"

	"github.com/Abin2112/Greencycle-sub000/config"
)

func TestResetCapacitiesRestoresMonthlyCapacity(t *testing.T) {
	s := &OrganizationService{DB: newTestDB(t), Config: newTestConfig()}

	drained := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)
	s.DB.Model(drained).Update("remaining_capacity", 2)
	full := createTestOrganization(t, s.DB, "回收站B", 0, 0, 20, "phone", 5, 4)

	count, err := s.ResetCapacities()
	if err != nil {
		t.Fatalf("重置容量失败: %v", err)
	}
	if count != 1 {
		t.Errorf("应只重置 1 家容量有消耗的机构，实际为 %d", count)
	}

	if got := reloadOrganization(t, s.DB, drained.ID).RemainingCapacity; got != 10 {
		t.Errorf("重置后剩余容量应为 10，实际为 %d", got)
	}
	if got := reloadOrganization(t, s.DB, full.ID).RemainingCapacity; got != 5 {
		t.Errorf("满容量机构不应被改动，实际为 %d", got)
	}
}

func TestResetCapacitiesDisabledInManualMode(t *testing.T) {
	cfg := &config.Config{CapacityResetMode: "manual", ImpactCacheTTLMinutes: 10}
	s := &OrganizationService{DB: newTestDB(t), Config: cfg}

	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)
	s.DB.Model(org).Update("remaining_capacity", 3)

	if _, err := s.ResetCapacities(); err == nil {
		t.Fatal("manual 策略下批量重置应返回错误")
	}

	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 3 {
		t.Errorf("manual 策略下容量不应被改动，实际为 %d", got)
	}
}
