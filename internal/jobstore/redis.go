// internal/jobstore/redis.go
package jobstore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 8

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps jobs in Redis so several worker-manager processes can
// share one registry. Keys:
//
//	<prefix>:job:<id>       job JSON
//	<prefix>:user:<userID>  id of the user's current job
//	<prefix>:terminal       sorted set of finished job ids scored by completion time (ms)
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   Options
}

func NewRedisStore(client *redis.Client, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "analysis"
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisStore) jobKey(id string) string      { return s.prefix + ":job:" + id }
func (s *RedisStore) userKey(userID string) string { return s.prefix + ":user:" + userID }
func (s *RedisStore) terminalKey() string          { return s.prefix + ":terminal" }

func (s *RedisStore) Submit(ctx context.Context, userID string, workUnits []string) (string, error) {
	if err := ValidateWorkUnits(userID, workUnits, s.opts.MaxWorkUnits); err != nil {
		return "", err
	}

	id := s.opts.NewID()
	data, err := json.Marshal(newJob(id, userID, workUnits, s.opts.Now()))
	if err != nil {
		return "", errors.Wrap(err, "encode job")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.jobKey(id), data, 0)
		pipe.Set(ctx, s.userKey(userID), id, 0)
		return nil
	})
	if err != nil {
		return "", errors.NewPersistenceFailedError("submit job", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return s.load(ctx, s.client, jobID)
}

func (s *RedisStore) GetByUser(ctx context.Context, userID string) (*models.AnalysisJob, error) {
	id, err := s.client.Get(ctx, s.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "no job for user %s", userID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailedError("get user job", err)
	}
	return s.load(ctx, s.client, id)
}

func (s *RedisStore) Transition(ctx context.Context, jobID string, status models.JobStatus) error {
	now := s.opts.Now()
	return s.update(ctx, jobID, func(job *models.AnalysisJob) error {
		return applyTransition(job, status, now)
	})
}

func (s *RedisStore) AppendResult(ctx context.Context, jobID string, result models.RepoAnalysis) error {
	return s.update(ctx, jobID, func(job *models.AnalysisJob) error {
		job.Results = append(job.Results, result)
		return nil
	})
}

func (s *RedisStore) AppendError(ctx context.Context, jobID string, message string) error {
	return s.update(ctx, jobID, func(job *models.AnalysisJob) error {
		job.Errors = append(job.Errors, message)
		return nil
	})
}

func (s *RedisStore) IsCurrent(ctx context.Context, jobID string) (bool, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	current, err := s.client.Get(ctx, s.userKey(job.UserID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.NewPersistenceFailedError("get user job", err)
	}
	return current == jobID, nil
}

func (s *RedisStore) Evict(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.opts.Now().Add(-maxAge)

	ids, err := s.client.ZRangeByScore(ctx, s.terminalKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, errors.NewPersistenceFailedError("list terminal jobs", err)
	}

	evicted := 0
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, errors.ErrJobNotFound) {
			// Payload already expired; drop the dangling index entry.
			if err := s.client.ZRem(ctx, s.terminalKey(), id).Err(); err != nil {
				return evicted, errors.NewPersistenceFailedError("remove terminal index entry", err)
			}
			continue
		}
		if err != nil {
			return evicted, err
		}
		if !expired(job, cutoff) {
			continue
		}
		if err := s.evictOne(ctx, job); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// evictOne drops the job and clears the user pointer only if it still names this job.
func (s *RedisStore) evictOne(ctx context.Context, job *models.AnalysisJob) error {
	userKey := s.userKey(job.UserID)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, userKey).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.jobKey(job.ID))
			pipe.ZRem(ctx, s.terminalKey(), job.ID)
			if current == job.ID {
				pipe.Del(ctx, userKey)
			}
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, userKey); err != nil {
		return errors.NewPersistenceFailedError("evict job", err)
	}
	return nil
}

// update runs fn against the stored job inside an optimistic transaction.
func (s *RedisStore) update(ctx context.Context, jobID string, fn func(*models.AnalysisJob) error) error {
	key := s.jobKey(jobID)

	txf := func(tx *redis.Tx) error {
		job, err := s.load(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return errors.Wrap(err, "encode job")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if job.Status.IsTerminal() && job.CompletedAt != nil {
				pipe.ZAdd(ctx, s.terminalKey(), redis.Z{
					Score:  float64(job.CompletedAt.UnixMilli()),
					Member: job.ID,
				})
			}
			return nil
		})
		return err
	}

	err := s.watch(ctx, txf, key)
	if err == nil {
		return nil
	}
	var stdErr *errors.StandardError
	if errors.As(err, &stdErr) {
		return err
	}
	return errors.NewPersistenceFailedError("update job", err)
}

func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return errors.Newf("redis transaction on %v kept conflicting", keys)
}

func (s *RedisStore) load(ctx context.Context, c stringGetter, jobID string) (*models.AnalysisJob, error) {
	raw, err := c.Get(ctx, s.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return nil, errors.NewPersistenceFailedError("get job", err)
	}

	var job models.AnalysisJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, errors.Wrapf(err, "decode job %s", jobID)
	}
	return &job, nil
}
