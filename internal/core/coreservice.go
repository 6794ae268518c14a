package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/ransomware-detector/internal/backend/cache"
	"github.com/jo-hoe/ransomware-detector/internal/datauri"
	"github.com/jo-hoe/ransomware-detector/internal/inference"
	"github.com/jo-hoe/ransomware-detector/internal/inference/gradio"
	"github.com/jo-hoe/ransomware-detector/internal/metrics"
	"github.com/jo-hoe/ransomware-detector/internal/upload"
)

type CoreService struct {
	config     *ServiceConfig
	predictor  inference.Predictor
	classifier inference.Classifier
	cache      cache.VerdictCache
	metrics    *metrics.Metrics
}

// NewCoreService wires the Gradio predictor configured in config.
func NewCoreService(config *ServiceConfig) *CoreService {
	return NewCoreServiceWithPredictor(config, newGradioPredictor(config))
}

func NewCoreServiceWithPredictor(config *ServiceConfig, predictor inference.Predictor) *CoreService {
	verdictCache, err := getVerdictCache(config)
	if err != nil {
		slog.Error("failed to initialize verdict cache", "error", err)
		panic(err)
	}
	return &CoreService{
		config:     config,
		predictor:  predictor,
		classifier: inference.NewClassifier(config.Inference.ClassificationFields, config.Inference.LegitimateLabel),
		cache:      verdictCache,
		metrics:    metrics.New(),
	}
}

func newGradioPredictor(config *ServiceConfig) inference.Predictor {
	options := []gradio.Option{}
	if config.Inference.HubURL != "" {
		options = append(options, gradio.WithHubURL(config.Inference.HubURL))
	}
	if config.Inference.Token != "" {
		options = append(options, gradio.WithToken(config.Inference.Token))
	}
	client := gradio.NewClient(config.Inference.Space, options...)
	return inference.NewGradioPredictor(client, config.Inference.Endpoint)
}

func getVerdictCache(config *ServiceConfig) (cache.VerdictCache, error) {
	verdictCache, err := cache.NewCache(config.Cache.Type, config.Cache.ConnectionString, config.Cache.TTL, config.Cache.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	slog.Info("verdict cache initialized successfully", "type", config.Cache.Type, "ttl", config.Cache.TTL)
	return verdictCache, nil
}

func (service *CoreService) UploadPolicy() upload.Policy {
	return service.config.Upload
}

func (service *CoreService) Metrics() *metrics.Metrics {
	return service.metrics
}

// Scan decodes file, checks it against the upload policy and asks the
// inference service for a verdict. Invalid input is returned as an error;
// failures of the inference service are reported in the Outcome.
func (service *CoreService) Scan(ctx context.Context, file UploadedFile) (*Outcome, error) {
	start := time.Now()

	headerType, content, err := datauri.Decode(file.Content)
	if err != nil {
		return nil, err
	}
	mimeType := file.Type
	if mimeType == "" {
		mimeType = headerType
	}
	if err := service.config.Upload.CheckFile(file.Name, mimeType, int64(len(content))); err != nil {
		return nil, err
	}
	service.metrics.UploadedBytes.Observe(float64(len(content)))

	digest := cache.Digest(content)
	outcome := &Outcome{
		ID: uuid.NewString(),
		File: FileInfo{
			Name:   file.Name,
			Type:   mimeType,
			Size:   int64(len(content)),
			SHA256: digest,
		},
	}

	prediction, cached := service.lookup(ctx, digest)
	if !cached {
		prediction, err = service.predict(ctx, inference.File{Name: file.Name, Type: mimeType, Content: content})
	}
	outcome.Duration = time.Since(start)
	outcome.Cached = cached
	service.complete(outcome, prediction, err)

	if outcome.Succeeded() && !cached {
		service.store(ctx, digest, prediction)
	}

	service.metrics.Scans.WithLabelValues(string(outcome.Status)).Inc()
	slog.Info("scan finished",
		"id", outcome.ID,
		"status", outcome.Status,
		"filename", outcome.File.Name,
		"size_bytes", outcome.File.Size,
		"sha256", digest,
		"cached", cached,
		"duration", outcome.Duration)
	return outcome, nil
}

func (service *CoreService) predict(ctx context.Context, file inference.File) (*inference.Prediction, error) {
	if timeout := service.config.Inference.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	service.metrics.InFlight.Inc()
	start := time.Now()
	defer func() {
		service.metrics.InFlight.Dec()
		service.metrics.InferenceTime.Observe(time.Since(start).Seconds())
	}()

	data, err := service.predictor.Predict(ctx, file)
	if err != nil {
		return nil, err
	}
	return service.classifier.Parse(data)
}

func (service *CoreService) complete(outcome *Outcome, prediction *inference.Prediction, err error) {
	var serviceErr *inference.ServiceError
	switch {
	case err == nil:
		outcome.Status = StatusSucceeded
		outcome.Prediction = prediction
		if prediction.Legitimate {
			outcome.Result = LegitimateMessage
			service.metrics.Verdicts.WithLabelValues("legitimate").Inc()
		} else {
			outcome.Result = RansomwareMessage
			service.metrics.Verdicts.WithLabelValues("ransomware").Inc()
		}
		outcome.Message = fmt.Sprintf("Scan of %s completed: %s", outcome.File.Name, outcome.Result)
	case errors.As(err, &serviceErr):
		outcome.Status = StatusServiceError
		outcome.Message = serviceErr.Message
		slog.Warn("inference service reported an error", "id", outcome.ID, "error", serviceErr.Message)
	default:
		outcome.Status = StatusUnavailable
		outcome.Message = "Error: the inference service could not be reached, please try again later"
		slog.Error("inference service unavailable", "id", outcome.ID, "error", err)
	}
}

func (service *CoreService) lookup(ctx context.Context, digest string) (*inference.Prediction, bool) {
	value, found, err := service.cache.Get(ctx, cache.Key(digest))
	if err != nil {
		slog.Warn("verdict cache lookup failed", "sha256", digest, "error", err)
		service.metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !found {
		service.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var prediction inference.Prediction
	if err := json.Unmarshal(value, &prediction); err != nil {
		slog.Warn("discarding undecodable cache entry", "sha256", digest, "error", err)
		service.metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	service.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &prediction, true
}

func (service *CoreService) store(ctx context.Context, digest string, prediction *inference.Prediction) {
	value, err := json.Marshal(prediction)
	if err != nil {
		slog.Warn("failed to encode prediction for cache", "sha256", digest, "error", err)
		return
	}
	if err := service.cache.Set(ctx, cache.Key(digest), value); err != nil {
		slog.Warn("failed to store verdict in cache", "sha256", digest, "error", err)
	}
}

func (service *CoreService) Close() error {
	return service.cache.Close()
}
