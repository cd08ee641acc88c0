package services

import (
	"context"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/internal/models"
	"github.com/benmeehan/iotctl/internal/utils"
)

// FleetService runs device queries across every device of a product.
type FleetService struct {
	Devices *DeviceService
	Workers int
	Logger  zerolog.Logger
}

// NewFleetService initializes a new FleetService.
func NewFleetService(devices *DeviceService, workers int, logger zerolog.Logger) *FleetService {
	return &FleetService{Devices: devices, Workers: workers, Logger: logger}
}

// ProductStatus fetches the status of every device of productID concurrently.
// A failing device is reported in its entry and does not fail the call.
func (s *FleetService) ProductStatus(ctx context.Context, productID string) ([]models.FleetStatus, error) {
	devices, err := s.Devices.ListDevices(ctx, productID)
	if err != nil {
		return nil, err
	}

	results := cmap.New[models.FleetStatus]()
	pool := utils.NewWorkerPool(ctx, s.Workers)
	for _, device := range devices {
		deviceID := device.Device
		pool.Submit(func(ctx context.Context) {
			entry := models.FleetStatus{Device: deviceID}
			status, err := s.Devices.DeviceStatus(ctx, deviceID)
			if err != nil {
				s.Logger.Warn().Err(err).Str("device", deviceID).Msg("Failed to get device status")
				entry.Error = err.Error()
			} else {
				entry.Status = status
			}
			results.Set(deviceID, entry)
		})
	}
	pool.Shutdown()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := results.Keys()
	sort.Strings(ids)

	statuses := make([]models.FleetStatus, 0, len(ids))
	for _, id := range ids {
		entry, _ := results.Get(id)
		statuses = append(statuses, entry)
	}
	return statuses, nil
}
