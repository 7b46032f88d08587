package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/imnitish-dev/ipenrich/details"
	"github.com/imnitish-dev/ipenrich/enrichment"
	applog "github.com/imnitish-dev/ipenrich/logger"
	"github.com/imnitish-dev/ipenrich/lookup"
	"github.com/imnitish-dev/ipenrich/rpc"
	"github.com/imnitish-dev/ipenrich/stix"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// localTokenRule accepts the empty token local databases are used with.
const localTokenRule = "omitempty,printascii"

// Config holds the application configuration
type Config struct {
	Env             string
	Port            string
	Host            string
	GRPCPort        string
	Provider        string
	IPInfoToken     string
	IPInfoBaseURL   string
	LookupTimeout   time.Duration
	MaxMindDBPath   string
	IP2LocationPath string
	Author          string
	Marking         string
	LogLevel        string
}

// loadConfig loads the configuration from environment variables
func loadConfig() (*Config, error) {
	env := getEnv("ENV", "development")
	envFile := fmt.Sprintf(".env.%s", env)

	// Try environment-specific file first
	if err := godotenv.Load(envFile); err != nil {
		// Fall back to default .env
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: no .env file found, using environment variables")
		}
	}

	timeout, err := time.ParseDuration(getEnv("LOOKUP_TIMEOUT", lookup.DefaultLookupTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEOUT: %w", err)
	}

	config := &Config{
		Env:             env,
		Port:            getEnv("PORT", "3000"),
		Host:            getEnv("HOST", "0.0.0.0"),
		GRPCPort:        getEnv("GRPC_PORT", "50051"),
		Provider:        getEnv("LOOKUP_PROVIDER", string(lookup.IPInfoProvider)),
		IPInfoToken:     os.Getenv("IPINFO_TOKEN"),
		IPInfoBaseURL:   getEnv("IPINFO_BASE_URL", lookup.DefaultIPInfoURL),
		LookupTimeout:   timeout,
		MaxMindDBPath:   getEnv("MAXMIND_DB_PATH", "./MaxMind.mmdb"),
		IP2LocationPath: getEnv("IP2LOCATION_DB_PATH", "./IP2LOCATION.BIN"),
		Author:          getEnv("ENRICH_AUTHOR", "IPinfo"),
		Marking:         getEnv("ENRICH_MARKING", stix.DefaultMarking),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Response holds the API response structure
type Response struct {
	Message string          `json:"message,omitempty"`
	IP      string          `json:"ip,omitempty"`
	Details *details.Record `json:"details,omitempty"`
	Labels  []string        `json:"labels,omitempty"`
	Bundle  *stix.Bundle    `json:"bundle,omitempty"`
	Note    string          `json:"note,omitempty"`
}

// App holds the application dependencies
type App struct {
	config    *Config
	factory   lookup.Factory
	tokenRule string
	database  *lookup.Database
	log       *zap.Logger
	fiber     *fiber.App
}

// NewApp wires the lookup provider selected by config
func NewApp(config *Config, log *zap.Logger) (*App, error) {
	provider, err := lookup.ParseProvider(config.Provider)
	if err != nil {
		return nil, err
	}

	if !provider.Local() {
		factory := lookup.NewIPInfoFactory(
			lookup.WithBaseURL(config.IPInfoBaseURL),
			lookup.WithTimeout(config.LookupTimeout),
		)
		return newApp(config, log, factory, enrichment.DefaultTokenRule), nil
	}

	path := config.MaxMindDBPath
	if provider == lookup.IP2LocationProvider {
		path = config.IP2LocationPath
	}
	db, err := lookup.OpenDatabase(provider, path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", provider, err)
	}

	app := newApp(config, log, db.Factory(), localTokenRule)
	app.database = db
	return app, nil
}

func newApp(config *Config, log *zap.Logger, factory lookup.Factory, tokenRule string) *App {
	app := &App{
		config:    config,
		factory:   factory,
		tokenRule: tokenRule,
		log:       log,
		fiber: fiber.New(fiber.Config{
			ErrorHandler: errorHandler,
			// Optimize for JSON responses
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
			// Disable startup message
			DisableStartupMessage: true,
		}),
	}

	app.setupRoutes()
	return app
}

// Close releases all resources
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

func (a *App) setupRoutes() {
	// Add logger middleware
	a.fiber.Use(logger.New(logger.Config{
		Format: "${time} ${status} - ${latency} ${method} ${path}\n",
	}))

	// Define routes
	a.fiber.Get("/enrich/:ip", a.handleEnrich)
	a.fiber.Get("/health", handleHealth)
}

// enrich runs one lookup. The request timeout is enforced here, the enricher
// itself has none.
func (a *App) enrich(ctx context.Context, ip, marking, entityID string) (*enrichment.Enricher, error) {
	if marking == "" {
		marking = a.config.Marking
	}
	opts := []enrichment.Option{
		enrichment.WithLogger(a.log),
		enrichment.WithTokenRule(a.tokenRule),
		enrichment.WithMarkingRefs(marking),
	}
	if entityID != "" {
		opts = append(opts, enrichment.WithEntityID(entityID))
	}

	if a.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.LookupTimeout)
		defer cancel()
	}
	return enrichment.New(ctx, a.factory, a.config.IPInfoToken, ip, a.config.Author, opts...)
}

// sanitizeIP unescapes the path parameter and accepts dashed IPv4 addresses
// (1-2-3-4). Validation is left to the enricher.
func sanitizeIP(rawIP string) (string, error) {
	ip, err := url.PathUnescape(rawIP)
	if err != nil {
		return "", err
	}

	ip = strings.TrimSpace(ip)

	// Remove dashes and replace with dots
	if !strings.Contains(ip, ":") {
		ip = strings.ReplaceAll(ip, "-", ".")
	}

	return ip, nil
}

func (a *App) handleEnrich(c *fiber.Ctx) error {
	// fiber reuses its buffers after the handler returns
	ip, err := sanitizeIP(utils.CopyString(c.Params("ip")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Response{
			Message: err.Error(),
		})
	}

	marking := utils.CopyString(c.Query("marking"))
	entityID := utils.CopyString(c.Query("entity_id"))
	e, err := a.enrich(c.UserContext(), ip, marking, entityID)
	if err != nil {
		return c.Status(httpStatus(err)).JSON(Response{
			Message: err.Error(),
		})
	}

	objects, err := e.StixObjects()
	if err != nil {
		return err
	}

	return c.JSON(Response{
		IP:      e.IP(),
		Details: e.Details(),
		Labels:  e.Labels(),
		Bundle:  stix.NewBundle(objects),
		Note:    e.NoteContent(),
	})
}

// httpStatus maps enrichment failures onto HTTP status codes. The API token
// is server configuration, so a malformed or rejected token is not the
// caller's fault.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, enrichment.ErrInvalidAddress):
		return fiber.StatusBadRequest
	case errors.Is(err, enrichment.ErrInvalidCredential):
		return fiber.StatusInternalServerError
	case errors.Is(err, lookup.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, enrichment.ErrInvalidAddress):
		return codes.InvalidArgument
	case errors.Is(err, enrichment.ErrInvalidCredential):
		return codes.Internal
	case errors.Is(err, lookup.ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Unavailable
	}
}

func handleHealth(c *fiber.Ctx) error {
	return c.JSON(Response{
		Message: "Service is healthy",
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(Response{
		Message: err.Error(),
	})
}

// GRPCServer implements the gRPC service
type GRPCServer struct {
	app *App
}

// Enrich implements the gRPC enrich method
func (s *GRPCServer) Enrich(ctx context.Context, req *rpc.EnrichRequest) (*rpc.EnrichResponse, error) {
	ip, err := sanitizeIP(req.IP)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	e, err := s.app.enrich(ctx, ip, req.MarkingRefs, req.EntityID)
	if err != nil {
		return nil, status.Error(grpcCode(err), err.Error())
	}

	objects, err := e.StixObjects()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	bundle, err := json.Marshal(stix.NewBundle(objects))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	record, err := e.Details().MarshalJSON()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &rpc.EnrichResponse{
		IP:      e.IP(),
		Labels:  e.Labels(),
		Note:    e.NoteContent(),
		Details: record,
		Bundle:  bundle,
	}, nil
}

func main() {
	// Load configuration
	config, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zlog, err := applog.New(config.LogLevel, config.Env == "development")
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	// Initialize application
	app, err := NewApp(config, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	// Start gRPC server
	go func() {
		grpcAddr := fmt.Sprintf("%s:%s", config.Host, config.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			zlog.Fatal("failed to listen for gRPC", zap.Error(err))
		}

		grpcServer := grpc.NewServer()
		rpc.RegisterEnrichmentServer(grpcServer, &GRPCServer{app: app})

		zlog.Info("gRPC server starting", zap.String("address", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			zlog.Fatal("failed to serve gRPC", zap.Error(err))
		}
	}()

	// Start HTTP server
	address := fmt.Sprintf("%s:%s", config.Host, config.Port)
	zlog.Info("HTTP server starting", zap.String("address", address), zap.String("provider", config.Provider))

	if err := app.fiber.Listen(address); err != nil {
		zlog.Fatal("HTTP server stopped", zap.Error(err))
	}
}
