package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/internal/batch"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/export"
	"github.com/medidispatch/dispatch-ocr/internal/metrics"
)

// OrchestratorFactory builds a fresh orchestrator per uploaded batch.
type OrchestratorFactory func() *batch.Orchestrator

// Service is the batch registry behind the HTTP surface. It owns the
// uploaded batches and implements batch.Processor so queued runs come back
// to it by batch ID.
type Service struct {
	logger          *slog.Logger
	newOrchestrator OrchestratorFactory
	exporter        *export.Service
	metrics         *metrics.BatchMetrics
	uploadDir       string

	queue *batch.Queue

	mu      sync.Mutex
	batches map[uuid.UUID]*batch.Orchestrator
}

func NewService(factory OrchestratorFactory, exporter *export.Service, m *metrics.BatchMetrics, uploadDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:          logger,
		newOrchestrator: factory,
		exporter:        exporter,
		metrics:         m,
		uploadDir:       uploadDir,
		batches:         make(map[uuid.UUID]*batch.Orchestrator),
	}
}

// StartQueue wires the background queue that runs batches. Call once at
// startup, before serving.
func (s *Service) StartQueue(opts ...batch.QueueOption) {
	s.queue = batch.NewQueue(s, s.logger, opts...)
}

// Shutdown drains the queue.
func (s *Service) Shutdown(ctx context.Context) {
	if s.queue != nil {
		s.queue.Shutdown(ctx)
	}
}

// Process implements batch.Processor.
func (s *Service) Process(ctx context.Context, batchID uuid.UUID) error {
	orch, ok := s.batch(batchID)
	if !ok {
		return fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	orch.ProcessAll(ctx)
	return nil
}

func (s *Service) createBatch() (uuid.UUID, *batch.Orchestrator) {
	id := uuid.New()
	orch := s.newOrchestrator()
	s.mu.Lock()
	s.batches[id] = orch
	s.mu.Unlock()
	s.logger.Info("batch created", "batch_id", id)
	return id, orch
}

func (s *Service) batch(id uuid.UUID) (*batch.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orch, ok := s.batches[id]
	return orch, ok
}
