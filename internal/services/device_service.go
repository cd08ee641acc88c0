package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/internal/models"
	"github.com/benmeehan/iotctl/pkg/session"
)

// DeviceService reads and changes device state.
type DeviceService struct {
	Client APIClient
	Store  session.Store
	Logger zerolog.Logger
}

// NewDeviceService initializes a new DeviceService.
func NewDeviceService(client APIClient, store session.Store, logger zerolog.Logger) *DeviceService {
	return &DeviceService{Client: client, Store: store, Logger: logger}
}

func (s *DeviceService) username() (string, error) {
	record, err := loadSession(s.Store)
	if err != nil {
		return "", err
	}
	return url.PathEscape(record.Username), nil
}

// ListDevices returns the devices of the user, restricted to productID when it is not empty.
func (s *DeviceService) ListDevices(ctx context.Context, productID string) ([]models.Device, error) {
	user, err := s.username()
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf(constants.EndpointUserDevices, user)
	if productID != "" {
		path += "?" + url.Values{constants.ProductDevicesQueryName: {productID}}.Encode()
	}

	var devices []models.Device
	if err := s.Client.Do(ctx, http.MethodGet, path, nil, &devices); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", notConfigured(err))
	}
	return devices, nil
}

// DeviceStatus returns a single device including its connection state.
func (s *DeviceService) DeviceStatus(ctx context.Context, deviceID string) (*models.Device, error) {
	user, err := s.username()
	if err != nil {
		return nil, err
	}

	var device models.Device
	path := fmt.Sprintf(constants.EndpointDevice, user, url.PathEscape(deviceID))
	if err := s.Client.Do(ctx, http.MethodGet, path, nil, &device); err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", deviceID, notConfigured(err))
	}
	return &device, nil
}

// Resource reads a device resource, or calls it with input when input is not nil.
func (s *DeviceService) Resource(ctx context.Context, deviceID, name string, input json.RawMessage) (json.RawMessage, error) {
	user, err := s.username()
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	var body any
	if input != nil {
		method = http.MethodPost
		body = input
	}

	var out json.RawMessage
	path := fmt.Sprintf(constants.EndpointDeviceResource, user, url.PathEscape(deviceID), url.PathEscape(name))
	if err := s.Client.Do(ctx, method, path, body, &out); err != nil {
		return nil, fmt.Errorf("failed to access resource %s on %s: %w", name, deviceID, notConfigured(err))
	}
	return out, nil
}

// Property reads a device property, or sets it to value when value is not nil.
func (s *DeviceService) Property(ctx context.Context, deviceID, name string, value json.RawMessage) (json.RawMessage, error) {
	user, err := s.username()
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	var body any
	if value != nil {
		method = http.MethodPut
		body = models.PropertyUpdate{Value: value}
	}

	var out json.RawMessage
	path := fmt.Sprintf(constants.EndpointDeviceProperty, user, url.PathEscape(deviceID), url.PathEscape(name))
	if err := s.Client.Do(ctx, method, path, body, &out); err != nil {
		return nil, fmt.Errorf("failed to access property %s on %s: %w", name, deviceID, notConfigured(err))
	}
	return out, nil
}
