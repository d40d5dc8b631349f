// Command nameserverd runs the distributed file system's metadata
// coordinator: it serves the HTTP command surface described in
// internal/httpapi, persisting the directory tree in MongoDB and
// fanning mutations out to registered storage nodes over FTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/config"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/coordinator"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/httpapi"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/obslog"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/registry"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/storagenode"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/tree"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := obslog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := connectMongo(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to metadata store")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from metadata store")
		}
	}()

	coll := mongoClient.Database(cfg.MetadataDatabase).Collection("tree")
	dirTree, err := tree.New(ctx, coll)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize directory tree")
	}

	reg := registry.New(registry.WithTimeout(cfg.RequestTimeout))

	co := coordinator.NewWithStoragenodeConfig(dirTree, reg, func(host string) storagenode.Config {
		return storagenode.Config{
			Host: host,
			Port: cfg.StorageNodePort,
			User: cfg.FTPUsername,
			Pass: cfg.FTPPassword,
		}
	}, log)

	srv := httpapi.New(co, log)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("name server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	uri := "mongodb://" + cfg.MetadataHost
	opts := options.Client().ApplyURI(uri)
	if cfg.MetadataUser != "" {
		opts = opts.SetAuth(options.Credential{
			Username: cfg.MetadataUser,
			Password: cfg.MetadataPassword,
		})
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	return client, nil
}
