// Package metrics wires the event loop's counters (reconnects, checksum
// mismatches, consumer lag) into Amazon CloudWatch. It is entirely optional:
// without a call to metrics.InitCloudWatch the client never touches the
// network for metrics and logger.LogMetric only produces structured log
// lines.
package metrics

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"krakenfeed/logger"
)

type state struct {
	client    *cloudwatch.Client
	namespace string
}

var current atomic.Pointer[state]

// InitCloudWatch creates a CloudWatch client for the given region and
// namespace and installs it as the logger's metric sink. Call it once at
// startup; a failure to load AWS credentials disables publishing but never
// prevents the client from running.
func InitCloudWatch(ctx context.Context, region, namespace string) error {
	log := logger.GetLogger().WithComponent("metrics")

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return err
	}

	if namespace == "" {
		namespace = "KrakenFeed"
	}

	current.Store(&state{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
	})
	logger.SetMetricSink(publish)

	log.WithFields(logger.Fields{"namespace": namespace}).Info("CloudWatch metrics enabled")
	return nil
}

// Disable removes the metric sink, reverting to log-only metrics.
func Disable() {
	current.Store(nil)
	logger.SetMetricSink(nil)
}

func publish(component, metric string, value float64, fields logger.Fields) {
	st := current.Load()
	if st == nil || st.client == nil {
		return
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(component)}}
	for k, v := range fields {
		if k == "metric" || k == "value" || k == "metric_type" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	datum := cwtypes.MetricDatum{
		MetricName: aws.String(metric),
		Dimensions: dims,
		Unit:       cwtypes.StandardUnitCount,
		Value:      aws.Float64(value),
	}

	go func() {
		ctx := context.Background()
		if _, err := st.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(st.namespace),
			MetricData: []cwtypes.MetricDatum{datum},
		}); err != nil {
			logger.GetLogger().WithComponent("metrics").WithError(err).
				WithFields(logger.Fields{"metric": strings.ToLower(metric)}).
				Debug("failed to publish CloudWatch metric")
		}
	}()
}
