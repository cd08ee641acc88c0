package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/internal/models"
	"github.com/benmeehan/iotctl/internal/utils"
	"github.com/benmeehan/iotctl/pkg/api"
	"github.com/benmeehan/iotctl/pkg/session"
)

// TunnelOptions are the local choices of a tunnel command.
type TunnelOptions struct {
	LocalPort uint16 // Server-side listening port, 0 picks one at random
	NoOpen    bool   // Do not open http tunnels in the browser
}

// ProxyIDGenerator produces the identifier of a new proxy route.
type ProxyIDGenerator interface {
	NewProxyID(kind, deviceID string) string
}

// ClockProxyIDGenerator builds ids as {kind}_{device prefix}_{base36 unix millis}.
// Ids are unique within the process: a timestamp equal to or before the last one is bumped.
type ClockProxyIDGenerator struct {
	Clock utils.Clock

	mu   sync.Mutex
	last int64
}

// NewProxyID returns the next proxy id.
func (g *ClockProxyIDGenerator) NewProxyID(kind, deviceID string) string {
	g.mu.Lock()
	ms := g.Clock.Now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	prefix := []rune(deviceID)
	if len(prefix) > constants.ProxyIDDevicePrefixLen {
		prefix = prefix[:constants.ProxyIDDevicePrefixLen]
	}

	return fmt.Sprintf("%s_%s_%s", kind, string(prefix), strconv.FormatInt(ms, 36))
}

// TunnelService manages the lifecycle of a proxy route into a device.
type TunnelService struct {
	Client      APIClient
	Store       session.Store
	IDs         ProxyIDGenerator
	PickPort    func() uint16
	OpenURL     func(ctx context.Context, url string) error
	OpenBrowser bool      // Open http tunnels in the browser unless the command disables it
	Out         io.Writer // Receives the tunnel address
	Logger      zerolog.Logger
}

// NewTunnelService initializes a new TunnelService.
func NewTunnelService(client APIClient, store session.Store, openBrowser bool, logger zerolog.Logger) *TunnelService {
	return &TunnelService{
		Client:      client,
		Store:       store,
		IDs:         &ClockProxyIDGenerator{Clock: utils.RealClock{}},
		PickPort:    RandomSourcePort,
		OpenURL:     utils.OpenBrowser,
		OpenBrowser: openBrowser,
		Out:         os.Stdout,
		Logger:      logger,
	}
}

// RandomSourcePort picks a listening port in [SourcePortMin, SourcePortMax].
func RandomSourcePort() uint16 {
	return uint16(constants.SourcePortMin + rand.Intn(constants.SourcePortMax-constants.SourcePortMin+1))
}

// DefaultTargetPort returns the target port used for kind when the target names none.
func DefaultTargetPort(kind string) (uint16, error) {
	switch kind {
	case constants.TunnelKindTCP:
		return constants.DefaultTCPPort, nil
	case constants.TunnelKindTLS:
		return constants.DefaultTLSPort, nil
	case constants.TunnelKindHTTP:
		return constants.DefaultHTTPPort, nil
	default:
		return 0, fmt.Errorf("unsupported tunnel kind %q", kind)
	}
}

// BuildDescriptor assembles the registration request for a tunnel.
func (s *TunnelService) BuildDescriptor(record *session.Record, deviceID, kind, target string, opts TunnelOptions) (*models.ProxyDescriptor, error) {
	defaultPort, err := DefaultTargetPort(kind)
	if err != nil {
		return nil, err
	}
	parsed := utils.ParseTarget(target, defaultPort)

	protocol := constants.ProxyProtocolTCP
	if kind == constants.TunnelKindHTTP {
		protocol = constants.ProxyProtocolHTTP
	}

	targetSecure := kind == constants.TunnelKindTLS ||
		(kind == constants.TunnelKindHTTP && (parsed.IsSecure || parsed.Port == 443))

	sourcePort := opts.LocalPort
	if sourcePort == 0 {
		sourcePort = s.PickPort()
	}

	proxyID := s.IDs.NewProxyID(kind, deviceID)
	return &models.ProxyDescriptor{
		Enabled: true,
		Config: models.ProxyConfig{
			Target: models.ProxyTarget{
				Type:    constants.TargetTypeAddress,
				User:    record.Username,
				Device:  deviceID,
				Address: parsed.Address,
				Port:    parsed.Port,
				Secure:  targetSecure,
			},
			Protocol: protocol,
			Source: models.ProxySource{
				Port:   sourcePort,
				Secure: kind != constants.TunnelKindTCP,
			},
		},
		ProxyID:     proxyID,
		Name:        proxyID,
		Description: fmt.Sprintf("%s tunnel to %s:%d on %s", kind, parsed.Address, parsed.Port, deviceID),
	}, nil
}

// CreateTunnel registers a proxy route to target on deviceID and blocks until ctx is cancelled.
// Once registration succeeded the route is deregistered exactly once on every way out.
func (s *TunnelService) CreateTunnel(ctx context.Context, deviceID, kind, target string, opts TunnelOptions) (err error) {
	record, err := loadSession(s.Store)
	if err != nil {
		return err
	}

	descriptor, err := s.BuildDescriptor(record, deviceID, kind, target, opts)
	if err != nil {
		return err
	}
	proxyID := descriptor.ProxyID

	var created models.ProxyDescriptor
	if err := s.Client.Do(ctx, http.MethodPost, constants.EndpointProxies, descriptor, &created); err != nil {
		if ctx.Err() != nil {
			// The route may exist even though the response was lost.
			s.deregister(ctx, proxyID)
			return nil
		}
		return registrationError(err)
	}
	if created.ProxyID != "" {
		proxyID = created.ProxyID
	}

	s.Logger.Info().Str("proxy", proxyID).Str("device", deviceID).Msg("Tunnel registered")

	defer s.deregister(ctx, proxyID)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tunnel failed: %v", r)
		}
	}()

	address := fmt.Sprintf("%s:%d", serverHost(record.Server), descriptor.Config.Source.Port)
	if kind == constants.TunnelKindHTTP {
		tunnelURL := "https://" + address
		if _, err := fmt.Fprintf(s.Out, "Tunnel available at %s\n", tunnelURL); err != nil {
			return fmt.Errorf("failed to report tunnel address: %w", err)
		}
		if s.OpenBrowser && !opts.NoOpen {
			utils.NonCritical(func(ctx context.Context) error {
				return s.OpenURL(ctx, tunnelURL)
			}).Run(ctx, s.Logger, "open browser")
		}
	} else {
		if _, err := fmt.Fprintf(s.Out, "Listening on %s\n", address); err != nil {
			return fmt.Errorf("failed to report tunnel address: %w", err)
		}
	}

	if _, err := fmt.Fprintln(s.Out, "Press Ctrl+C to close the tunnel"); err != nil {
		return fmt.Errorf("failed to report tunnel address: %w", err)
	}

	<-ctx.Done()
	return nil
}

// deregister deletes the proxy route. It outlives the cancellation of ctx and never fails the command.
func (s *TunnelService) deregister(ctx context.Context, proxyID string) {
	utils.NonCritical(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DeregisterTimeout)
		defer cancel()

		if err := s.Client.Do(ctx, http.MethodDelete, constants.EndpointProxies+"/"+url.PathEscape(proxyID), nil, nil); err != nil {
			return fmt.Errorf("failed to deregister tunnel %s: %w", proxyID, err)
		}
		s.Logger.Info().Str("proxy", proxyID).Msg("Tunnel deregistered")
		return nil
	}).Run(ctx, s.Logger, "deregister tunnel")
}

// registrationError keeps auth and connectivity failures as they are and wraps the rest.
func registrationError(err error) error {
	err = notConfigured(err)
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrConnectivity) {
		return err
	}
	return &RegistrationError{Err: err}
}

// serverHost strips scheme, port and path from a configured server.
func serverHost(server string) string {
	u, err := url.Parse(api.BaseURL(server))
	if err != nil || u.Hostname() == "" {
		return server
	}
	return u.Hostname()
}
