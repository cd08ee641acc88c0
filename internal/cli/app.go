package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/internal/services"
	"github.com/benmeehan/iotctl/internal/utils"
	"github.com/benmeehan/iotctl/pkg/api"
	"github.com/benmeehan/iotctl/pkg/encryption"
	"github.com/benmeehan/iotctl/pkg/file"
	"github.com/benmeehan/iotctl/pkg/session"
)

// App holds the state shared by all commands of one invocation.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Config *utils.Config
	Logger zerolog.Logger
	Store  session.Store
	Client *api.Client

	configPath string
	verbose    bool
}

// NewApp creates an App bound to the process standard streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Logger: zerolog.Nop()}
}

// Run parses the global flags, wires the dependencies and dispatches args.
func (a *App) Run(ctx context.Context, args []string) error {
	global := pflag.NewFlagSet("iotctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	global.StringVar(&a.configPath, "config", "", "path to the configuration file (default "+utils.DefaultConfigPath()+")")
	global.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	if err := global.Parse(args); err != nil {
		return err
	}

	root := a.Root()
	root.help = a.Stderr
	rest := global.Args()
	if len(rest) == 0 || isHelpFlag(rest[0]) || rest[0] == "version" {
		return root.Execute(ctx, rest)
	}

	if err := a.setup(); err != nil {
		return err
	}
	return root.Execute(ctx, rest)
}

// setup loads the configuration and builds the session store and transport.
func (a *App) setup() error {
	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(a.configPath, fileClient)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.Config = config

	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.Logger = zerolog.New(zerolog.ConsoleWriter{Out: a.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	encryptionManager := encryption.NewEncryptionManager(fileClient)
	if err := encryptionManager.Initialize(config.Session.KeyFile); err != nil {
		return fmt.Errorf("failed to initialize session encryption: %w", err)
	}

	a.Store = session.NewFileStore(config.Session.File, fileClient, encryptionManager)
	a.Client = api.NewClient(a.Store, api.Config{
		Timeout:            config.HTTP.Timeout,
		HandshakeTimeout:   constants.WSHandshakeTimeout,
		InsecureSkipVerify: config.HTTP.InsecureSkipVerify,
	}, a.Logger)

	a.Logger.Debug().Str("session_file", config.Session.File).Msg("Configuration loaded")
	return nil
}

func (a *App) deviceService() *services.DeviceService {
	return services.NewDeviceService(a.Client, a.Store, a.Logger)
}

// printJSON writes v to stdout as indented JSON.
func (a *App) printJSON(v any) error {
	encoder := json.NewEncoder(a.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
