package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Abin2112/Greencycle-sub000/models"
)

func newTestDeviceService(t *testing.T) (*DeviceService, *ImpactService) {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	impactService := &ImpactService{DB: db, Config: cfg}
	deviceService := &DeviceService{DB: db, Config: cfg, ImpactService: impactService}
	return deviceService, impactService
}

func TestCreateDeviceGeneratesTrackingCode(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	device, err := s.CreateDevice(owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, nil)
	if err != nil {
		t.Fatalf("创建设备失败: %v", err)
	}

	if device.Status != models.DeviceStatusUploaded {
		t.Errorf("初始状态应为 uploaded，实际为 %s", device.Status)
	}
	if !strings.HasPrefix(device.TrackingCode, "GC-") {
		t.Errorf("追踪码应以 GC- 开头，实际为 %s", device.TrackingCode)
	}

	other, err := s.CreateDevice(owner.ID, models.DeviceCategoryPhone, models.DeviceConditionFair, nil)
	if err != nil {
		t.Fatalf("创建第二台设备失败: %v", err)
	}
	if other.TrackingCode == device.TrackingCode {
		t.Errorf("两台设备的追踪码不应相同: %s", device.TrackingCode)
	}
}

func TestCreateDeviceRejectsInvalidInput(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)

	if _, err := s.CreateDevice(owner.ID, "fridge", models.DeviceConditionGood, nil); err == nil {
		t.Error("无效类别应返回错误")
	}
	if _, err := s.CreateDevice(owner.ID, models.DeviceCategoryPhone, "broken", nil); err == nil {
		t.Error("无效成色应返回错误")
	}
	negative := -1.0
	if _, err := s.CreateDevice(owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, &negative); err == nil {
		t.Error("非正重量应返回错误")
	}
	if _, err := s.CreateDevice(9999, models.DeviceCategoryPhone, models.DeviceConditionGood, nil); err == nil {
		t.Error("不存在的提交者应返回错误")
	}
}

func TestAdvanceStatusLegalTransition(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusUploaded, nil)

	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	updated, err := s.AdvanceStatus(device.ID, models.DeviceStatusUploaded, models.DeviceStatusAwaitingMatch, actor)
	if err != nil {
		t.Fatalf("合法流转失败: %v", err)
	}
	if updated.Status != models.DeviceStatusAwaitingMatch {
		t.Errorf("流转后状态应为 awaiting_match，实际为 %s", updated.Status)
	}
}

func TestAdvanceStatusRejectsIllegalEdge(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusUploaded, nil)

	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusUploaded, models.DeviceStatusPickedUp, actor); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("跳跃流转应返回 ErrInvalidTransition，实际为 %v", err)
	}

	// 终态不允许任何流转
	recycled := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusRecycled, nil)
	if _, err := s.AdvanceStatus(recycled.ID, models.DeviceStatusRecycled, models.DeviceStatusProcessing, actor); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态流转应返回 ErrInvalidTransition，实际为 %v", err)
	}
}

func TestAdvanceStatusRejectsStaleExpectedStatus(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	// 设备实际已在 awaiting_match，调用方还以为在 uploaded
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusUploaded, models.DeviceStatusAwaitingMatch, actor); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("过期的期望状态应返回 ErrInvalidTransition，实际为 %v", err)
	}

	// 状态未被破坏
	if got := reloadDevice(t, s.DB, device.ID).Status; got != models.DeviceStatusAwaitingMatch {
		t.Errorf("失败的流转不应改变状态，实际为 %s", got)
	}
}

func TestAdvanceStatusEnforcesOwnership(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	stranger := createTestAccount(t, s.DB, "submitter2", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusUploaded, nil)

	actor := Actor{AccountID: stranger.ID, Role: models.RoleSubmitter}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusUploaded, models.DeviceStatusAwaitingMatch, actor); !errors.Is(err, ErrForbidden) {
		t.Errorf("非设备所有者应返回 ErrForbidden，实际为 %v", err)
	}
}

func TestAdvanceStatusEnforcesRolePerEdge(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusPickedUp, &org.ID)

	// picked_up → received 只允许机构触发
	submitterActor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusPickedUp, models.DeviceStatusReceived, submitterActor); !errors.Is(err, ErrForbidden) {
		t.Errorf("提交者触发 picked_up→received 应返回 ErrForbidden，实际为 %v", err)
	}

	// 机构只能操作分配给自己的设备
	otherOrgID := org.ID + 100
	wrongOrgActor := Actor{AccountID: 999, Role: models.RoleOrganization, OrganizationID: &otherOrgID}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusPickedUp, models.DeviceStatusReceived, wrongOrgActor); !errors.Is(err, ErrForbidden) {
		t.Errorf("非分配机构应返回 ErrForbidden，实际为 %v", err)
	}

	orgActor := Actor{AccountID: 998, Role: models.RoleOrganization, OrganizationID: &org.ID}
	updated, err := s.AdvanceStatus(device.ID, models.DeviceStatusPickedUp, models.DeviceStatusReceived, orgActor)
	if err != nil {
		t.Fatalf("分配机构触发流转失败: %v", err)
	}
	if updated.Status != models.DeviceStatusReceived {
		t.Errorf("流转后状态应为 received，实际为 %s", updated.Status)
	}
}

func TestAdvanceStatusMatchedEdgeIsEngineOnly(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusAwaitingMatch, nil)

	// awaiting_match → matched 必须经过匹配引擎的容量预留事务，任何角色直接调用都被拒绝
	operator := Actor{AccountID: 1, Role: models.RoleOperator}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusAwaitingMatch, models.DeviceStatusMatched, operator); !errors.Is(err, ErrForbidden) {
		t.Errorf("直接触发匹配边应返回 ErrForbidden，实际为 %v", err)
	}
}

func TestAdvanceStatusCancelAfterMatchReleasesCapacity(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)

	// 模拟已匹配状态：容量已被预留一份
	s.DB.Model(org).Update("remaining_capacity", 9)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusMatched, &org.ID)
	appointment := createTestAppointment(t, s.DB, device.ID, org.ID, models.AppointmentStatusScheduled,
		time.Now().Add(time.Hour), time.Now().Add(3*time.Hour))

	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	updated, err := s.AdvanceStatus(device.ID, models.DeviceStatusMatched, models.DeviceStatusCancelled, actor)
	if err != nil {
		t.Fatalf("取消已匹配设备失败: %v", err)
	}

	if updated.Status != models.DeviceStatusCancelled {
		t.Errorf("设备状态应为 cancelled，实际为 %s", updated.Status)
	}
	if updated.OrganizationID != nil {
		t.Error("取消后设备不应再关联机构")
	}
	if got := reloadOrganization(t, s.DB, org.ID).RemainingCapacity; got != 10 {
		t.Errorf("取消后机构容量应归还为 10，实际为 %d", got)
	}

	var cancelled models.PickupAppointment
	if err := s.DB.First(&cancelled, appointment.ID).Error; err != nil {
		t.Fatalf("读取预约失败: %v", err)
	}
	if cancelled.Status != models.AppointmentStatusCancelled {
		t.Errorf("设备取消后预约应被取消，实际为 %s", cancelled.Status)
	}
	if !cancelled.CapacityReleased {
		t.Error("预约应标记容量已释放，避免重复归还")
	}
}

func TestCancelReleasesCapacityToCurrentOrganization(t *testing.T) {
	s, _ := newTestDeviceService(t)
	appointments := &AppointmentService{DB: s.DB, Config: s.Config}
	matching := &MatchingService{DB: s.DB, Config: s.Config}

	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	orgA := createTestOrganization(t, s.DB, "回收站A", 0, 0.1, 50, "phone", 10, 4.0)
	orgB := createTestOrganization(t, s.DB, "回收站B", 0, 0.2, 50, "phone", 10, 4.0)

	// 设备已匹配到A：A的容量已被预留一份
	s.DB.Model(orgA).Update("remaining_capacity", 9)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusMatched, &orgA.ID)
	appointment := createTestAppointment(t, s.DB, device.ID, orgA.ID, models.AppointmentStatusScheduled,
		time.Now().Add(time.Hour), time.Now().Add(3*time.Hour))

	// 预约取消把设备退回待匹配并归还A的容量
	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	if _, err := appointments.Cancel(appointment.ID, actor); err != nil {
		t.Fatalf("取消预约失败: %v", err)
	}

	// A 已无名额，重新匹配把设备转给B
	s.DB.Model(orgA).Update("remaining_capacity", 0)
	matched, err := matching.RequestMatch(device.ID)
	if err != nil {
		t.Fatalf("重新匹配失败: %v", err)
	}
	if matched.ID != orgB.ID {
		t.Fatalf("应重新匹配到B，实际为 %d", matched.ID)
	}

	// 此时取消设备：归还的必须是事务内锁定行上的当前机构B，而不是任何旧快照里的A
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusMatched, models.DeviceStatusCancelled, actor); err != nil {
		t.Fatalf("取消设备失败: %v", err)
	}

	if got := reloadOrganization(t, s.DB, orgB.ID).RemainingCapacity; got != 10 {
		t.Errorf("取消后B的容量应归还为 10，实际为 %d", got)
	}
	if got := reloadOrganization(t, s.DB, orgA.ID).RemainingCapacity; got != 0 {
		t.Errorf("A的容量不应被误归还，实际为 %d", got)
	}
}

func TestAdvanceStatusCancelAfterPickupForbidden(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusPickedUp, &org.ID)

	actor := Actor{AccountID: owner.ID, Role: models.RoleSubmitter}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusPickedUp, models.DeviceStatusCancelled, actor); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("取件后取消应返回 ErrInvalidTransition，实际为 %v", err)
	}
}

func TestAdvanceStatusDispositionRecordsImpactOnce(t *testing.T) {
	s, impactService := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "laptop", 10, 4)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryLaptop, models.DeviceConditionGood, models.DeviceStatusProcessing, &org.ID)

	actor := Actor{AccountID: 1, Role: models.RoleOperator}
	updated, err := s.AdvanceStatus(device.ID, models.DeviceStatusProcessing, models.DeviceStatusRecycled, actor)
	if err != nil {
		t.Fatalf("终态处置流转失败: %v", err)
	}
	if updated.Status != models.DeviceStatusRecycled {
		t.Errorf("处置后状态应为 recycled，实际为 %s", updated.Status)
	}
	if !updated.ImpactProcessed {
		t.Error("终态处置后应置位环保成果幂等标记")
	}

	// 重试落账不产生第二条记录
	if err := impactService.ProcessDeviceImpact(device.ID); err != nil {
		t.Fatalf("重复落账应为无副作用的空操作: %v", err)
	}

	var count int64
	s.DB.Model(&models.ImpactRecord{}).Where("device_id = ?", device.ID).Count(&count)
	if count != 1 {
		t.Errorf("同一设备应只有一条环保成果记录，实际为 %d", count)
	}
}

func TestPickupMarksActiveAppointmentCompleted(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	org := createTestOrganization(t, s.DB, "回收站A", 0, 0, 20, "phone", 10, 4)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusMatched, &org.ID)
	appointment := createTestAppointment(t, s.DB, device.ID, org.ID, models.AppointmentStatusConfirmed,
		time.Now().Add(time.Hour), time.Now().Add(3*time.Hour))

	orgActor := Actor{AccountID: 998, Role: models.RoleOrganization, OrganizationID: &org.ID}
	if _, err := s.AdvanceStatus(device.ID, models.DeviceStatusMatched, models.DeviceStatusPickedUp, orgActor); err != nil {
		t.Fatalf("取件流转失败: %v", err)
	}

	var completed models.PickupAppointment
	if err := s.DB.First(&completed, appointment.ID).Error; err != nil {
		t.Fatalf("读取预约失败: %v", err)
	}
	if completed.Status != models.AppointmentStatusCompleted {
		t.Errorf("取件完成后预约应为 completed，实际为 %s", completed.Status)
	}
}

func TestGetDeviceByTrackingCode(t *testing.T) {
	s, _ := newTestDeviceService(t)
	owner := createTestAccount(t, s.DB, "submitter1", models.RoleSubmitter, 0, 0)
	device := createTestDevice(t, s.DB, owner.ID, models.DeviceCategoryPhone, models.DeviceConditionGood, models.DeviceStatusUploaded, nil)

	found, err := s.GetDeviceByTrackingCode(device.TrackingCode)
	if err != nil {
		t.Fatalf("按追踪码查询失败: %v", err)
	}
	if found.ID != device.ID {
		t.Errorf("查询到的设备ID应为 %d，实际为 %d", device.ID, found.ID)
	}

	if _, err := s.GetDeviceByTrackingCode("GC-NOTEXIST"); err == nil {
		t.Error("不存在的追踪码应返回错误")
	}
}
