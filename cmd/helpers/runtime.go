// Package helpers builds the logger, configuration and service clients shared by all commands
package helpers

import (
	"context"
	"os"
	"os/exec"

	"github.com/ZeljkoBenovic/cpaasctl/backup"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers/flagnames"
	"github.com/ZeljkoBenovic/cpaasctl/compose"
	"github.com/ZeljkoBenovic/cpaasctl/config"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/executor"
	"github.com/ZeljkoBenovic/cpaasctl/ssl"
	"github.com/ZeljkoBenovic/cpaasctl/stack"
	"github.com/ZeljkoBenovic/cpaasctl/storage"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
)

// RequiredExecutables must be on PATH for any stack operation
var RequiredExecutables = []string{"docker"}

// NewLogger returns a named logger using the --log-level flag
func NewLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:                 name,
		Level:                hclog.LevelFromString(viper.GetString(flagnames.LogLevel)),
		Color:                hclog.AutoColor,
		ColorHeaderAndFields: true,
	})
}

// Runtime holds the clients used by a single command invocation
type Runtime struct {
	Env     config.Config
	Logger  hclog.Logger
	DB      db.IDB
	Exec    executor.Executor
	Compose *compose.Compose
	Docker  *stack.Docker
}

// NewRuntime loads the env file and opens the state database and the docker client
func NewRuntime(logger hclog.Logger) (*Runtime, error) {
	return newRuntime(logger, false)
}

// NewCheckedRuntime is NewRuntime for commands that change the deployment.
// Prerequisites are validated before the state database is created.
func NewCheckedRuntime(logger hclog.Logger) (*Runtime, error) {
	return newRuntime(logger, true)
}

func newRuntime(logger hclog.Logger, check bool) (*Runtime, error) {
	env, err := config.Load(viper.GetString(flagnames.EnvFile))
	if err != nil {
		return nil, err
	}

	if check {
		if err = Validate(env); err != nil {
			return nil, err
		}
	}

	dbInst, err := db.NewDB(logger, viper.GetString(flagnames.DBFileLocation))
	if err != nil {
		return nil, err
	}

	dockerCl, err := stack.NewDocker(env.Compose.Project, logger)
	if err != nil {
		_ = dbInst.Close()

		return nil, err
	}

	ex := executor.New(logger)

	return &Runtime{
		Env:     env,
		Logger:  logger,
		DB:      dbInst,
		Exec:    ex,
		Compose: compose.New(env.Compose.File, env.Compose.Project, ex, logger),
		Docker:  dockerCl,
	}, nil
}

func (r *Runtime) Close() {
	if err := r.Docker.Close(); err != nil {
		r.Logger.Error("Could not close docker client", "err", err)
	}

	if err := r.DB.Close(); err != nil {
		r.Logger.Error("Could not close database client", "err", err)
	}
}

// Stack loads the service manifest and returns the orchestrator
func (r *Runtime) Stack() (*stack.Stack, error) {
	manifest, err := stack.LoadManifest(viper.GetString(flagnames.ManifestFile))
	if err != nil {
		return nil, err
	}

	return stack.NewStack(stack.Config{
		Env:          r.Env,
		Manifest:     manifest,
		TierTimeout:  viper.GetDuration(flagnames.TierTimeout),
		PollInterval: viper.GetDuration(flagnames.PollInterval),
		MaxAttempts:  viper.GetInt(flagnames.MaxAttempts),
		Executables:  RequiredExecutables,
	}, r.Logger, r.DB, r.Compose, r.Docker), nil
}

// Backup returns the backup manager with every configured source
func (r *Runtime) Backup(ctx context.Context, stageRetries int) (*backup.Manager, error) {
	var store storage.ObjectStore

	if r.Env.UploadEnabled() {
		s3, err := storage.NewS3(ctx, storage.Config{
			Region:          r.Env.S3.Region,
			Bucket:          r.Env.S3.Bucket,
			AccessKeyID:     r.Env.S3.AccessKeyID,
			SecretAccessKey: r.Env.S3.SecretAccessKey,
			Endpoint:        r.Env.S3.Endpoint,
			UsePathStyle:    r.Env.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}

		store = s3
	}

	sources := []backup.Source{
		backup.PostgresDump{
			Dumper:   r.Compose,
			Service:  r.Env.Postgres.Service,
			User:     r.Env.Postgres.User,
			Database: r.Env.Postgres.Database,
		},
		backup.RedisSnapshot{
			Saver:      backup.NewRedisSaver(r.Env.RedisAddr(), r.Env.Redis.Password),
			Containers: r.Docker,
			Service:    r.Env.Redis.Service,
		},
		backup.PathCopy{Label: "config", Paths: r.Env.Backup.ConfigPaths},
		backup.PathCopy{Label: "logs", Paths: r.Env.Backup.LogPaths},
	}

	return backup.NewManager(backup.Config{
		Dir:             r.Env.Backup.Dir,
		KeepLocal:       r.Env.Backup.KeepLocal,
		RemoteRetention: r.Env.RemoteRetention(),
		RemotePrefix:    r.Env.S3.Prefix,
		StageRetries:    stageRetries,
	}, sources, store, r.DB, r.Logger), nil
}

// SSL returns the certificate manager
func (r *Runtime) SSL() *ssl.Manager {
	m := ssl.NewManager(r.Env, r.Exec, r.Logger)
	m.EnvFile = viper.GetString(flagnames.EnvFile)

	return m
}

// Validate runs the prerequisite checks without touching the deployment
func Validate(env config.Config) error {
	return config.Validate(env, RequiredExecutables, exec.LookPath)
}

// Fatal logs the error and exits with a nonzero code
func Fatal(logger hclog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
