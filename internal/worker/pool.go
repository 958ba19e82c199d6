package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSync          = "jobs:sync"
	QueueClasificacion = "jobs:clasificacion"
	QueueEmail         = "jobs:email"
)

// MaxJobAttempts is how many times a job runs before landing in the DLQ.
const MaxJobAttempts = 3

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload. A returned error requeues the job
// until MaxJobAttempts, then the pool moves it to the DLQ.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueSync pushes a MercadoPago synchronization job.
func (d *Dispatcher) EnqueueSync(ctx context.Context, payload SyncPayload) error {
	return d.enqueue(ctx, QueueSync, "sync", payload)
}

// EnqueueClasificacion pushes an AI classification job.
func (d *Dispatcher) EnqueueClasificacion(ctx context.Context, payload ClasificacionPayload) error {
	return d.enqueue(ctx, QueueClasificacion, "clasificacion", payload)
}

// EnqueueEmail pushes an email notification job.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed set of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
}

// NewPool maps each queue to its handler.
func NewPool(rdb *redis.Client, sync, clasificacion, email Handler) *Pool {
	return &Pool{
		rdb: rdb,
		handlers: map[string]Handler{
			QueueSync:          sync,
			QueueClasificacion: clasificacion,
			QueueEmail:         email,
		},
	}
}

// Start launches numWorkers goroutines consuming all queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(ctx, i)
	}
	log.Info().Int("workers", numWorkers).Msg("worker pool iniciado")
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	queues := []string{QueueSync, QueueClasificacion, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker finalizando")
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("job ilegible")
		return
	}

	handler, ok := p.handlers[queue]
	if !ok || handler == nil {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("cola sin handler")
		return
	}

	if err := handler(ctx, job.Payload); err != nil {
		job.Attempts++
		if job.Attempts >= MaxJobAttempts {
			SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		encoded, mErr := json.Marshal(job)
		if mErr != nil {
			log.Error().Err(mErr).Msg("no se pudo reencolar el job")
			return
		}
		if pushErr := p.rdb.LPush(ctx, queue, encoded).Err(); pushErr != nil {
			log.Error().Err(pushErr).Str("queue", queue).Msg("no se pudo reencolar el job")
			return
		}
		log.Warn().
			Str("queue", queue).
			Str("type", job.Type).
			Int("attempts", job.Attempts).
			Err(err).
			Msg("job fallido, reencolado")
		return
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job procesado")
}
