package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Abin2112/Greencycle-sub000/config"
	"github.com/Abin2112/Greencycle-sub000/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// 通知主题常量
const (
	// 设备状态变更主题
	TopicDeviceStatus = "greencycle/device/status"

	// 预约事件主题
	TopicAppointmentEvents = "greencycle/appointment/events"

	// 系统消息主题
	TopicSystemMessage = "greencycle/system"
)

// NotificationMessage 通知消息基础结构
type NotificationMessage struct {
	MessageID string                 `json:"message_id"`
	Type      string                 `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// InterfaceNotificationService defines the fire-and-forget notification dispatcher
type InterfaceNotificationService interface {
	Connect() error
	Disconnect()
	PublishDeviceStatus(device *models.Device, event string) error
	PublishAppointmentEvent(appointment *models.PickupAppointment, event string) error
	PublishSystemMessage(messageType string, payload map[string]interface{}) error
}

// NotificationService 通过MQTT向消息协作方投递状态变更通知。
// 投递是尽力而为的：连接不可用或发布失败只记录日志，不影响主流程
type NotificationService struct {
	Config         *config.Config
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex // 保护IsConnected字段的读写
	PublishMutex   sync.Mutex   // 保护MQTT消息发布
}

// NewNotificationService 创建一个新的通知服务
func NewNotificationService(cfg *config.Config) InterfaceNotificationService {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-" + uuid.NewString()[:8]).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	return &NotificationService{
		Config: cfg,
		Client: mqtt.NewClient(opts),
	}
}

// Connect 连接MQTT服务器
func (s *NotificationService) Connect() error {
	token := s.Client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return fmt.Errorf("连接MQTT服务器失败: %v", token.Error())
	}

	s.connectedMutex.Lock()
	s.IsConnected = true
	s.connectedMutex.Unlock()

	config.Info("MQTT通知服务已连接: %s", s.Config.MQTTBroker)
	return nil
}

// Disconnect 断开MQTT连接
func (s *NotificationService) Disconnect() {
	s.connectedMutex.Lock()
	s.IsConnected = false
	s.connectedMutex.Unlock()

	s.Client.Disconnect(250)
}

// connected 检查连接状态
func (s *NotificationService) connected() bool {
	s.connectedMutex.RLock()
	defer s.connectedMutex.RUnlock()
	return s.IsConnected && s.Client.IsConnected()
}

// publish 序列化并发布一条通知消息
func (s *NotificationService) publish(topic, messageType string, payload map[string]interface{}) error {
	if !s.connected() {
		return fmt.Errorf("MQTT未连接，丢弃消息: %s", messageType)
	}

	message := NotificationMessage{
		MessageID: uuid.NewString(),
		Type:      messageType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	token := s.Client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(3*time.Second) || token.Error() != nil {
		return fmt.Errorf("发布消息到 %s 失败: %v", topic, token.Error())
	}

	return nil
}

// 1 PublishDeviceStatus 发布设备状态变更通知
func (s *NotificationService) PublishDeviceStatus(device *models.Device, event string) error {
	payload := map[string]interface{}{
		"device_id":     device.ID,
		"tracking_code": device.TrackingCode,
		"owner_id":      device.OwnerID,
		"status":        device.Status,
	}
	if device.OrganizationID != nil {
		payload["organization_id"] = *device.OrganizationID
	}

	return s.publish(TopicDeviceStatus, event, payload)
}

// 2 PublishAppointmentEvent 发布预约事件通知
func (s *NotificationService) PublishAppointmentEvent(appointment *models.PickupAppointment, event string) error {
	return s.publish(TopicAppointmentEvents, event, map[string]interface{}{
		"appointment_id":  appointment.ID,
		"device_id":       appointment.DeviceID,
		"organization_id": appointment.OrganizationID,
		"status":          appointment.Status,
		"window_start":    appointment.WindowStart,
		"window_end":      appointment.WindowEnd,
	})
}

// 3 PublishSystemMessage 发布系统消息
func (s *NotificationService) PublishSystemMessage(messageType string, payload map[string]interface{}) error {
	return s.publish(TopicSystemMessage, messageType, payload)
}
