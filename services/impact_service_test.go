package services

import (
	"math"
	"testing"

	"github.com/Abin2112/Greencycle-sub000/models"
)

func newTestImpactService(t *testing.T) *ImpactService {
	t.Helper()
	return &ImpactService{DB: newTestDB(t), Config: newTestConfig()}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateBaselineLaptop(t *testing.T) {
	s := newTestImpactService(t)

	// 未声明重量的 laptop，good 成色，recycled 处置：全部系数为 1
	metrics, err := s.Calculate(models.DeviceCategoryLaptop, models.DeviceConditionGood, nil, models.DeviceStatusRecycled)
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}

	if !almostEqual(metrics.WaterSavedL, 19000) {
		t.Errorf("节水量应为 19000，实际为 %v", metrics.WaterSavedL)
	}
	if !almostEqual(metrics.CO2SavedKG, 210) {
		t.Errorf("减碳量应为 210，实际为 %v", metrics.CO2SavedKG)
	}
	if !almostEqual(metrics.ToxicPreventedKG, 0.45) {
		t.Errorf("毒物阻断量应为 0.45，实际为 %v", metrics.ToxicPreventedKG)
	}
	if metrics.Points != 2100 {
		t.Errorf("积分应为 2100，实际为 %d", metrics.Points)
	}
}

func TestCalculateAppliesAllMultipliers(t *testing.T) {
	s := newTestImpactService(t)

	// phone excellent refurbished，重量 0.4kg（参考重量 0.2kg，重量系数 2）
	// 总系数 = 1.2 × 1.3 × 2 = 3.12
	weight := 0.4
	metrics, err := s.Calculate(models.DeviceCategoryPhone, models.DeviceConditionExcellent, &weight, models.DeviceStatusRefurbished)
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}

	if !almostEqual(metrics.WaterSavedL, 37440) {
		t.Errorf("节水量应为 37440，实际为 %v", metrics.WaterSavedL)
	}
	if !almostEqual(metrics.CO2SavedKG, 171.6) {
		t.Errorf("减碳量应为 171.6，实际为 %v", metrics.CO2SavedKG)
	}
	// 0.12 × 3.12 = 0.3744，保留两位小数
	if !almostEqual(metrics.ToxicPreventedKG, 0.37) {
		t.Errorf("毒物阻断量应为 0.37，实际为 %v", metrics.ToxicPreventedKG)
	}
	// floor(171.6 × 10) = 1716
	if metrics.Points != 1716 {
		t.Errorf("积分应为 1716，实际为 %d", metrics.Points)
	}
}

func TestCalculatePoorConditionHalvesMetrics(t *testing.T) {
	s := newTestImpactService(t)

	metrics, err := s.Calculate(models.DeviceCategoryBattery, models.DeviceConditionPoor, nil, models.DeviceStatusRecycled)
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}

	if !almostEqual(metrics.WaterSavedL, 400) {
		t.Errorf("节水量应为 400，实际为 %v", metrics.WaterSavedL)
	}
	if !almostEqual(metrics.CO2SavedKG, 3) {
		t.Errorf("减碳量应为 3，实际为 %v", metrics.CO2SavedKG)
	}
	if !almostEqual(metrics.ToxicPreventedKG, 0.15) {
		t.Errorf("毒物阻断量应为 0.15，实际为 %v", metrics.ToxicPreventedKG)
	}
	if metrics.Points != 30 {
		t.Errorf("积分应为 30，实际为 %d", metrics.Points)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	s := newTestImpactService(t)

	weight := 1.5
	first, err := s.Calculate(models.DeviceCategoryLaptop, models.DeviceConditionFair, &weight, models.DeviceStatusDonated)
	if err != nil {
		t.Fatalf("计算失败: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := s.Calculate(models.DeviceCategoryLaptop, models.DeviceConditionFair, &weight, models.DeviceStatusDonated)
		if err != nil {
			t.Fatalf("计算失败: %v", err)
		}
		if again != first {
			t.Fatalf("相同输入应得到相同结果: %+v vs %+v", first, again)
		}
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	s := newTestImpactService(t)

	if _, err := s.Calculate("fridge", models.DeviceConditionGood, nil, models.DeviceStatusRecycled); err == nil {
		t.Error("无效类别应返回错误")
	}
	if _, err := s.Calculate(models.DeviceCategoryPhone, "broken", nil, models.DeviceStatusRecycled); err == nil {
		t.Error("无效成色应返回错误")
	}
	if _, err := s.Calculate(models.DeviceCategoryPhone, models.DeviceConditionGood, nil, models.DeviceStatusCancelled); err == nil {
		t.Error("cancelled 不是有效处置方式，应返回错误")
	}
}

func TestProcessDeviceImpactUpdatesAccountTotals(t *testing.T) {
	s := newTestImpactService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, models.DeviceStatusRecycled, nil)

	if err := s.ProcessDeviceImpact(device.ID); err != nil {
		t.Fatalf("落账失败: %v", err)
	}

	var account models.Account
	if err := s.DB.First(&account, owner.ID).Error; err != nil {
		t.Fatalf("读取账户失败: %v", err)
	}
	if account.TotalPoints != 2100 {
		t.Errorf("累计积分应为 2100，实际为 %d", account.TotalPoints)
	}
	if !almostEqual(account.TotalCO2SavedKG, 210) {
		t.Errorf("累计减碳应为 210，实际为 %v", account.TotalCO2SavedKG)
	}
	if !almostEqual(account.TotalWaterSavedL, 19000) {
		t.Errorf("累计节水应为 19000，实际为 %v", account.TotalWaterSavedL)
	}

	var record models.ImpactRecord
	if err := s.DB.Where("device_id = ?", device.ID).First(&record).Error; err != nil {
		t.Fatalf("读取环保成果记录失败: %v", err)
	}
	if record.Disposition != models.DeviceStatusRecycled {
		t.Errorf("记录的处置方式应为 recycled，实际为 %s", record.Disposition)
	}
	if record.Points != 2100 {
		t.Errorf("记录的积分应为 2100，实际为 %d", record.Points)
	}
}

func TestProcessDeviceImpactIsIdempotent(t *testing.T) {
	s := newTestImpactService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusRecycled, nil)

	for i := 0; i < 3; i++ {
		if err := s.ProcessDeviceImpact(device.ID); err != nil {
			t.Fatalf("第 %d 次落账失败: %v", i+1, err)
		}
	}

	var count int64
	s.DB.Model(&models.ImpactRecord{}).Where("device_id = ?", device.ID).Count(&count)
	if count != 1 {
		t.Errorf("重复落账应只产生一条记录，实际为 %d", count)
	}

	var account models.Account
	s.DB.First(&account, owner.ID)
	if account.TotalPoints != 550 {
		t.Errorf("累计积分只应累加一次，应为 550，实际为 %d", account.TotalPoints)
	}
}

func TestProcessDeviceImpactRejectsNonDisposition(t *testing.T) {
	s := newTestImpactService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusProcessing, nil)

	if err := s.ProcessDeviceImpact(device.ID); err == nil {
		t.Error("非终态处置的设备落账应返回错误")
	}

	// 失败后幂等标记随事务回滚，设备可在到达终态后重试
	if reloadDevice(t, s.DB, device.ID).ImpactProcessed {
		t.Error("落账失败后幂等标记应回滚为 false")
	}
}

func TestBadgesGrantedAtThresholdsOnce(t *testing.T) {
	s := newTestImpactService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	// laptop good recycled：2100 分，210kg 减碳。
	// 应一次性解锁 green_starter/green_contributor/green_champion/carbon_saver
	first := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, models.DeviceStatusRecycled, nil)
	if err := s.ProcessDeviceImpact(first.ID); err != nil {
		t.Fatalf("落账失败: %v", err)
	}

	var badges []models.Badge
	if err := s.DB.Where("account_id = ?", owner.ID).Find(&badges).Error; err != nil {
		t.Fatalf("读取徽章失败: %v", err)
	}

	got := make(map[string]int)
	for _, b := range badges {
		got[b.Code]++
	}
	for _, code := range []string{"green_starter", "green_contributor", "green_champion", "carbon_saver"} {
		if got[code] != 1 {
			t.Errorf("徽章 %s 应恰好授予一次，实际为 %d", code, got[code])
		}
	}
	if got["carbon_hero"] != 0 {
		t.Error("减碳未达 1000kg，不应授予 carbon_hero")
	}

	// 第二台设备不会重复授予已有徽章
	second := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, models.DeviceStatusRecycled, nil)
	if err := s.ProcessDeviceImpact(second.ID); err != nil {
		t.Fatalf("落账失败: %v", err)
	}

	var total int64
	s.DB.Model(&models.Badge{}).Where("account_id = ? AND code = ?", owner.ID, "green_champion").Count(&total)
	if total != 1 {
		t.Errorf("徽章不应重复授予，实际为 %d", total)
	}
}

func TestGetImpactSummaryAggregates(t *testing.T) {
	s := newTestImpactService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	devices := []*models.Device{
		createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusRecycled, nil),
		createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, models.DeviceStatusDonated, nil),
	}
	for _, d := range devices {
		if err := s.ProcessDeviceImpact(d.ID); err != nil {
			t.Fatalf("落账失败: %v", err)
		}
	}

	summary, err := s.GetImpactSummary(owner.ID)
	if err != nil {
		t.Fatalf("获取成果汇总失败: %v", err)
	}

	if summary.AccountID != owner.ID {
		t.Errorf("汇总账户ID应为 %d，实际为 %d", owner.ID, summary.AccountID)
	}
	if summary.CompletedDevices != 2 {
		t.Errorf("已完成设备数应为 2，实际为 %d", summary.CompletedDevices)
	}
	// phone good recycled: 550 分；laptop good donated: floor(231×10)=2310 分
	if summary.TotalPoints != 2860 {
		t.Errorf("累计积分应为 2860，实际为 %d", summary.TotalPoints)
	}
	if len(summary.Badges) == 0 {
		t.Error("汇总应包含已授予的徽章")
	}

	if _, err := s.GetImpactSummary(9999); err == nil {
		t.Error("不存在的账户应返回错误")
	}
}
