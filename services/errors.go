package services

import "errors"

// 设备回收流程的领域错误，控制器通过 errors.Is 将其映射为响应码
var (
	// ErrInvalidTransition 状态流转不合法，或调用方观察到的状态已过期
	ErrInvalidTransition = errors.New("非法的设备状态流转")

	// ErrForbidden 当前角色无权触发该状态流转
	ErrForbidden = errors.New("无权执行该操作")

	// ErrNoEligibleOrganization 没有可匹配的回收机构
	ErrNoEligibleOrganization = errors.New("没有符合条件的回收机构")

	// ErrAlreadyScheduled 设备已存在生效中的取件预约
	ErrAlreadyScheduled = errors.New("设备已存在生效中的取件预约")

	// ErrCapacityExhausted 机构剩余容量在预留竞争中被抢占
	ErrCapacityExhausted = errors.New("机构剩余回收容量不足")
)
