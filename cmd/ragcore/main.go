package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cortexflow/ragcore"
	"github.com/cortexflow/ragcore/extract"
	"github.com/cortexflow/ragcore/llm/ollama"
	"github.com/cortexflow/ragcore/persistence/chromem"
	"github.com/cortexflow/ragcore/vector"

	mcpE "github.com/cortexflow/ragcore/mcp"
	memoryP "github.com/cortexflow/ragcore/persistence/memory"
	httpT "github.com/cortexflow/ragcore/transport/http"
	natsT "github.com/cortexflow/ragcore/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "ragcore",
		Usage: "Retrieval-augmented conversational backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the ragcore configuration directory",
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL (empty disables the NATS transport)",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "HTTP server address",
				Value: ":8080",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Static bearer token guarding the HTTP API (empty disables auth)",
				Sources: cli.EnvVars("RAGCORE_AUTH_TOKEN"),
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".cortexflow", "ragcore")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		return err
	}
	defer f.Close()

	var cfg ragcore.Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return err
	}

	var index vector.Index
	if cfg.Vector.Backend == "chromem" {
		cfg.Vector.Path = filepath.Join(path, "vectors")

		index, err = chromem.NewIndex(cfg.Vector)
		if err != nil {
			return err
		}
	} else {
		index = memoryP.NewIndex()
	}

	client := ollama.NewClient(cfg.LLM)
	extractor := extract.NewDocumentExtractor()

	svc, err := ragcore.NewService(cfg, index, client, client, extractor)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = ragcore.LoggingMiddleware(log)(svc)

	endpoints := ragcore.EndpointSet{
		Embed:          ragcore.EmbedEndpoint(svc),
		IngestDocument: ragcore.IngestDocumentEndpoint(svc),
		IngestRaw:      ragcore.IngestRawEndpoint(svc),
		Query:          ragcore.QueryEndpoint(svc),
		Chat:           ragcore.ChatEndpoint(svc),
		History:        ragcore.HistoryEndpoint(svc),
		ClearHistory:   ragcore.ClearHistoryEndpoint(svc),
	}

	natsURL := cmd.String("nats")
	if natsURL != "" {
		opts := []nats.Option{
			nats.Name("ragcore"),
		}

		creds := filepath.Join(path, "user.creds")
		if _, err := os.Stat(creds); err == nil {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "ragcore",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup("ragcore")
		natsT.AddEndpoints(root, endpoints)
	}

	r := gin.Default()

	if token := cmd.String("auth-token"); token != "" {
		r.Use(httpT.Authorize(staticTokenAuthenticator{token: token}))
	}

	httpT.AddRouters(r, endpoints, svc)

	mcpEndpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
	mcpEndpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
	mcpEndpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
	mcpEndpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
	mcpEndpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
	httpT.AddStreamableRouters(r, mcpEndpoints)

	httpAddr := cmd.String("http-addr")
	go r.Run(httpAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

type staticTokenAuthenticator struct {
	token string
}

func (a staticTokenAuthenticator) Authenticate(token string) (ragcore.Principal, error) {
	if token != a.token {
		return ragcore.Principal{}, errors.New("invalid token")
	}

	return ragcore.Principal{Subject: "api"}, nil
}
