package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/taskflow-realtime/modules/auth"
	"github.com/example/taskflow-realtime/modules/hub"
	"github.com/example/taskflow-realtime/modules/presence"
	"github.com/example/taskflow-realtime/modules/relay"
	"github.com/example/taskflow-realtime/modules/rooms"
	"github.com/example/taskflow-realtime/modules/typing"
	"github.com/example/taskflow-realtime/modules/wsserver"
)

// shutdownTimeout bounds the graceful drain; past it the process is
// terminated rather than left hanging on stuck connections.
const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("=== Taskflow Realtime - presence and event fanout ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	authConfig := auth.DefaultConfig()
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		authConfig.Secret = secret
	}
	authModule := auth.NewModule(authConfig)
	presenceModule := presence.NewModule()
	roomsModule := rooms.NewModule()
	typingModule := typing.NewModule(typing.DefaultIdleWindow)
	hubModule := hub.NewModule()

	relayModule := relay.NewModule(
		newPubSubSource(),
		envOr("PUBSUB_CHANNEL", "taskflow:events"),
		roomsModule.Manager(),
		hubModule.Hub(),
	)

	handlers := wsserver.NewHandlers(
		hubModule.Hub(),
		roomsModule.Manager(),
		presenceModule.Tracker(),
		typingModule.Tracker(),
	)
	wsModule := wsserver.NewModule(":"+envOr("PORT", "3000"), authModule.Verifier(), handlers)

	// Synthetic typing stops need the broadcast path; wired manually
	// because the handlers are not exposed via ServiceContainer.
	typingModule.SetExpiryHandler(handlers.TypingExpired)

	// Registration order is startup order: state trackers first, then the
	// relay, then the listener. The pub/sub subscription must be active
	// before any client connection is accepted.
	app.Register(authModule)
	app.Register(presenceModule)
	app.Register(roomsModule)
	app.Register(typingModule)
	app.Register(hubModule)
	app.Register(relayModule)
	app.Register(wsModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// newPubSubSource builds the domain-event source from the environment.
// Redis Pub/Sub is the default backbone; NATS is available for deployments
// already running one for the REST services.
func newPubSubSource() relay.Source {
	switch driver := envOr("PUBSUB_DRIVER", "redis"); driver {
	case "redis":
		return relay.NewRedisSource(envOr("REDIS_ADDR", "localhost:6379"))
	case "nats":
		return relay.NewNATSSource(envOr("NATS_URL", "nats://localhost:4222"))
	default:
		log.Fatalf("Unknown PUBSUB_DRIVER %q (want redis or nats)", driver)
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printStartupInfo() {
	port := envOr("PORT", "3000")

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Realtime protocol:")
	log.Println("  - Connect: ws://localhost:" + port + "/ws?token=<jwt>")
	log.Println("  - Commands: join:project, leave:project, join:task, leave:task,")
	log.Println("              typing:start, typing:stop")
	log.Println("  - Events:   room:joined, room:members, room:userJoined, room:userLeft,")
	log.Println("              user:online, user:offline, typing:user, typing:stopped,")
	log.Println("              task:created, task:updated, task:deleted, comment:added")
	log.Println("")
	log.Printf("REST Endpoints (http://localhost:%s):", port)
	log.Println("  GET /health                            - Health check")
	log.Println("  GET /api/v1/presence                   - Online users")
	log.Println("  GET /api/v1/rooms/:kind/:id/members    - Room viewers")
	log.Println("")
	log.Printf("Pub/sub: driver=%s channel=%s", envOr("PUBSUB_DRIVER", "redis"), envOr("PUBSUB_CHANNEL", "taskflow:events"))
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
