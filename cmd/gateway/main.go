package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinelgate/pkg/anomaly"
	"sentinelgate/pkg/embed"
	"sentinelgate/pkg/gateway"
	"sentinelgate/pkg/genai"
	"sentinelgate/pkg/guard"
	"sentinelgate/pkg/ledger"
	"sentinelgate/shared/config"
	"sentinelgate/shared/logging"
	"sentinelgate/shared/otelobs"
)

func main() {
	logging.Infof("starting sentinelgate bootstrap")

	apiKey, err := config.Require("GEMINI_API_KEY")
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	shutdownTracer, err := otelobs.InitTracer("sentinelgate")
	if err != nil {
		log.Fatalf("tracer init failed: %v", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	embedder, err := buildEmbedder()
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	detector := anomaly.NewDetector(embedder)
	store := anomaly.NewStore(config.Get("MODEL_STATE_PATH", "data/anomaly_model_state.bin"))
	if err := loadOrTrain(detector, store, embedder.Dim()); err != nil {
		log.Fatalf("anomaly model init failed: %v", err)
	}

	genaiOpts := []genai.Option{}
	if base := os.Getenv("GENAI_BASE_URL"); base != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(base))
	}
	if model := os.Getenv("GENAI_MODEL"); model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(model))
	}
	client, err := genai.New(apiKey, genaiOpts...)
	if err != nil {
		log.Fatalf("generative model client init failed: %v", err)
	}

	var cache *guard.VerdictCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		cache = guard.NewVerdictCache(rdb, config.GetDuration("VERDICT_CACHE_TTL", 15*time.Minute))
		logging.Infof("verdict cache enabled via redis at %s", addr)
	}

	engine := guard.NewEngine(detector, guard.NewGeminiAdjudicator(client), cache)
	audit := ledger.New(config.Get("AUDIT_LOG_PATH", "data/activity_log.jsonl"))
	srv := gateway.New(engine, detector, store, client, audit)

	addr := config.Get("GATEWAY_ADDR", ":7080")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           otelobs.WrapHTTPHandler("sentinelgate", srv.Mux()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Infof("sentinelgate listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil {
		log.Fatalf("sentinelgate stopped: %v", err)
	}
}

func buildEmbedder() (embed.Embedder, error) {
	dim := config.GetInt("EMBED_DIM", 0)
	if url := os.Getenv("EMBED_SERVICE_URL"); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Infof("using embedding service at %s", url)
		return embed.NewServiceEmbedder(ctx, url, dim)
	}
	logging.Infof("using local hashing embedder")
	return embed.NewHashEmbedder(dim), nil
}

// loadOrTrain restores the persisted model state, or retrains on the baseline
// corpus when the artifact is missing, corrupt, or was trained at a different
// embedding dimension. All of these are recoverable: the artifact is cleared
// and replaced.
func loadOrTrain(detector *anomaly.Detector, store *anomaly.Store, embedDim int) error {
	state, err := store.Load()
	if err == nil {
		if state.EmbedDim != embedDim {
			logging.Warnf("model state at %s has embedding dim %d, embedder produces %d; retraining",
				store.Path(), state.EmbedDim, embedDim)
		} else {
			detector.SetState(state)
			logging.Infof("loaded anomaly model state v%d from %s", state.Version, store.Path())
			return nil
		}
	} else if !errors.Is(err, anomaly.ErrNotFound) {
		return err
	}

	logging.Warnf("no usable model state at %s; training on baseline corpus", store.Path())
	if err := store.Clear(); err != nil {
		return err
	}
	state, err = detector.Train(anomaly.BaselineCorpus())
	if err != nil {
		return err
	}
	if err := store.Save(state); err != nil {
		return err
	}
	logging.Infof("trained and persisted anomaly model state v%d", state.Version)
	return nil
}
