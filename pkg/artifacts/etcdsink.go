package artifacts

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hpc-scale/prepare-scale/common/clusterconfig"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const defaultEtcdRetries = 5

type EtcdSinkOptions struct {
	Logger *zap.Logger
	// KV is usually a *clientv3.Client.
	KV        clientv3.KV
	KeyPrefix string
	// ClusterName scopes the keys, so several clusters can share a prefix.
	ClusterName string

	MaxRetries     uint64
	InitialBackoff time.Duration
}

// EtcdSink publishes the GUI address and the full plan to etcd.
type EtcdSink struct {
	logger      *zap.Logger
	kv          clientv3.KV
	keyPrefix   string
	clusterName string

	maxRetries     uint64
	initialBackoff time.Duration
}

var _ Sink = (*EtcdSink)(nil)

func NewEtcdSink(opts EtcdSinkOptions) (*EtcdSink, error) {
	if opts.KV == nil {
		return nil, errors.New("etcd sink requires an etcd client")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultEtcdRetries
	}

	initialBackoff := opts.InitialBackoff
	if initialBackoff == 0 {
		initialBackoff = backoff.DefaultInitialInterval
	}

	return &EtcdSink{
		logger:         logger,
		kv:             opts.KV,
		keyPrefix:      opts.KeyPrefix,
		clusterName:    opts.ClusterName,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

func (s *EtcdSink) clusterKey(clusterType string) string {
	return path.Join("/", s.keyPrefix, s.clusterName, clusterType)
}

func (s *EtcdSink) GUIAddressKey(clusterType string) string {
	return path.Join(s.clusterKey(clusterType), GUIAddressKey(clusterType))
}

func (s *EtcdSink) PlanKey(clusterType string) string {
	return path.Join(s.clusterKey(clusterType), "plan")
}

func (s *EtcdSink) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.Reset()

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err != nil {
			s.logger.Warn("etcd operation failed",
				zap.String("operation", what),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx))
}

func (s *EtcdSink) Publish(ctx context.Context, plan *clusterconfig.TopologyPlan) error {
	planBytes, err := json.Marshal(plan)
	if err != nil {
		return errors.Wrap(err, "failed to encode plan")
	}

	err = s.retry(ctx, "publish-plan", func(ctx context.Context) error {
		_, err := s.kv.Put(ctx, s.PlanKey(plan.ClusterType), string(planBytes))
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to publish plan to etcd")
	}

	if plan.GUIAddress != "" {
		err = s.retry(ctx, "publish-gui-address", func(ctx context.Context) error {
			_, err := s.kv.Put(ctx, s.GUIAddressKey(plan.ClusterType), plan.GUIAddress)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to publish gui address to etcd")
		}
	}

	s.logger.Info("published plan to etcd",
		zap.String("runId", plan.RunID),
		zap.String("key", s.clusterKey(plan.ClusterType)))

	return nil
}

func (s *EtcdSink) Cleanup(ctx context.Context, clusterType string) error {
	err := s.retry(ctx, "cleanup", func(ctx context.Context) error {
		_, err := s.kv.Delete(ctx, s.clusterKey(clusterType)+"/", clientv3.WithPrefix())
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to remove stale etcd keys")
	}
	return nil
}
