package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/queueglue/plugins/awsconfig"
	"github.com/queueglue/plugins/cloudwatch"
	"github.com/queueglue/plugins/dynamodb"
	"github.com/queueglue/plugins/logging"
	"github.com/queueglue/plugins/s3"
	"github.com/queueglue/plugins/sqs"
)

// maxLineBytes bounds a single input line, which is one message body.
const maxLineBytes = 1 << 20

// queue is the subset of *sqs.Client used by the commands.
type queue interface {
	SendBatch(ctx context.Context, bodies []string) (*sqs.BatchResult, error)
	ReadMessages(ctx context.Context, maxMessages int32) ([]string, error)
	Purge(ctx context.Context) error
}

// metricsPublisher is the subset of *cloudwatch.Client used by send.
type metricsPublisher interface {
	LogMetrics(ctx context.Context, metrics []cwtypes.MetricDatum) (int, error)
}

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfgPath   string
	overrides awsconfig.Config
	bucket    string
	table     string
	logLevel  string
	queueName string

	metricsNamespace string

	// openQueue and openMetrics are replaced in tests.
	openQueue   func(ctx context.Context, a *app) (queue, error)
	openMetrics func(ctx context.Context, a *app) (metricsPublisher, error)
	now         func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:        in,
		out:       out,
		errOut:    errOut,
		openQueue:   openSQSQueue,
		openMetrics: openCloudWatch,
		now:         time.Now,
	}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "sqsbatch",
		Short:         "Send, read and purge SQS messages",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// An explicit --config must exist; the default path is optional.
			if changedFlags(cmd.Flags())["config"] {
				if _, err := os.Stat(a.cfgPath); err != nil {
					return fmt.Errorf("config file: %w", err)
				}
			}
			return nil
		},
	}

	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", awsconfig.DefaultFilePath(), "path to TOML config file")
	flags.StringVar(&a.overrides.Region, "region", "", "AWS region")
	flags.StringVar(&a.overrides.Profile, "profile", "", "shared config profile")
	flags.StringVar(&a.overrides.EndpointOverride, "endpoint", "", "endpoint override, e.g. http://localhost:4566")
	flags.StringVar(&a.bucket, "bucket", "", "S3 bucket for payloads larger than an SQS message")
	flags.StringVar(&a.table, "table", "", "DynamoDB table for payloads larger than an SQS message")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&a.queueName, "queue", "", "queue name")

	root.AddCommand(a.sendCommand(), a.readCommand(), a.purgeCommand())

	return root
}

func (a *app) sendCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message per input line in as few batches as possible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := a.in

			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}

			bodies, lines, err := readLines(in)
			if err != nil {
				return err
			}

			q, err := a.openQueue(cmd.Context(), a)
			if err != nil {
				return err
			}

			result, err := q.SendBatch(cmd.Context(), bodies)
			if result != nil {
				printResult(a.out, result, lines)
				a.publishSendMetrics(cmd.Context(), result)
			}
			if err != nil {
				return err
			}

			if !result.AllSucceeded() {
				return fmt.Errorf("%d of %d messages failed", len(result.Failed), len(bodies))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read messages from file instead of stdin")
	cmd.Flags().StringVar(&a.metricsNamespace, "metrics-namespace", "", "publish send counts to this CloudWatch namespace")

	return cmd
}

func (a *app) readCommand() *cobra.Command {
	var maxMessages int32

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print up to --max messages without deleting them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.openQueue(cmd.Context(), a)
			if err != nil {
				return err
			}

			bodies, err := q.ReadMessages(cmd.Context(), maxMessages)
			if err != nil {
				return err
			}

			for _, b := range bodies {
				fmt.Fprintln(a.out, b)
			}

			return nil
		},
	}

	cmd.Flags().Int32VarP(&maxMessages, "max", "n", 10, "maximum number of messages (1-10)")

	return cmd
}

func (a *app) purgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete all messages in the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.openQueue(cmd.Context(), a)
			if err != nil {
				return err
			}

			return q.Purge(cmd.Context())
		},
	}
}

func openSQSQueue(ctx context.Context, a *app) (queue, error) {
	if a.queueName == "" {
		return nil, errors.New("--queue is required")
	}

	logger, err := a.logger()
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.Resolve(a.cfgPath, a.overrides)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var opts []sqs.Option

	switch {
	case a.bucket != "" && a.table != "":
		return nil, errors.New("--bucket and --table are mutually exclusive")
	case a.bucket != "":
		store, err := s3.New(&awsCfg, a.bucket, logger,
			s3.WithUsePathStyle(cfg.EndpointOverride != ""),
			s3.WithCreateBucketIfMissing(cfg.EndpointOverride != ""),
		).Init(ctx)
		if err != nil {
			return nil, err
		}

		opts = append(opts, sqs.WithPayloadStore(store))
	case a.table != "":
		store := dynamodb.New(&awsCfg, a.table)

		if err := store.Connect(); err != nil {
			return nil, err
		}

		if err := store.Init(ctx, false); err != nil {
			return nil, err
		}

		opts = append(opts, sqs.WithPayloadStore(store))
	}

	return sqs.New(&awsCfg, a.queueName, logger, opts...).Init(ctx)
}

func openCloudWatch(ctx context.Context, a *app) (metricsPublisher, error) {
	logger, err := a.logger()
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.Resolve(a.cfgPath, a.overrides)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return cloudwatch.New(&awsCfg, a.metricsNamespace, logger).Init(ctx)
}

// publishSendMetrics records the outcome of a send in CloudWatch when
// --metrics-namespace is set. Failures are reported but do not fail the
// command.
func (a *app) publishSendMetrics(ctx context.Context, result *sqs.BatchResult) {
	if a.metricsNamespace == "" {
		return
	}

	metrics, err := a.openMetrics(ctx, a)
	if err != nil {
		fmt.Fprintf(a.errOut, "warning: metrics not published: %v\n", err)
		return
	}

	now := a.now()
	sent := sentCount(result)

	_, err = metrics.LogMetrics(ctx, []cwtypes.MetricDatum{
		cloudwatch.CountMetric("Queue", a.queueName, "MessagesSent", sent, now),
		cloudwatch.CountMetric("Queue", a.queueName, "MessagesFailed", len(result.Failed), now),
		cloudwatch.CountMetric("Queue", a.queueName, "Batches", result.Batches, now),
	})
	if err != nil {
		fmt.Fprintf(a.errOut, "warning: metrics not published: %v\n", err)
	}
}

func (a *app) logger() (logging.Logger, error) {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	return logging.New(a.errOut, level), nil
}

// readLines returns the non-empty lines of r together with their 1-based
// line numbers in r.
func readLines(r io.Reader) ([]string, []int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		bodies []string
		lines  []int
	)

	for n := 1; scanner.Scan(); n++ {
		if line := scanner.Text(); line != "" {
			bodies = append(bodies, line)
			lines = append(lines, n)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return bodies, lines, nil
}

// printResult reports the outcome of a send. lines maps each message index
// to its line number in the input.
func printResult(w io.Writer, result *sqs.BatchResult, lines []int) {
	fmt.Fprintf(w, "sent %d messages in %d batches\n", sentCount(result), result.Batches)

	for _, f := range result.Failed {
		fmt.Fprintf(w, "failed line %d: %s %s\n", lines[f.Index], f.Code, f.Message)
	}
}

func sentCount(result *sqs.BatchResult) int {
	sent := 0
	for _, id := range result.MessageIDs {
		if id != "" {
			sent++
		}
	}

	return sent
}

// changedFlags returns the names of the flags set on the command line.
func changedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	return changed
}
