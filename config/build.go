package config

import (
	"time"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/executor/cloudvm"
	"github.com/pyrite-run/pyrite/executor/docker"
	"github.com/pyrite-run/pyrite/executor/local"
	"github.com/pyrite-run/pyrite/executor/sandboxapi"
	"github.com/pyrite-run/pyrite/executor/wasm"
)

// Registry returns an executor registry with a factory per supported
// kind, each bound to this configuration.
func (c *Config) Registry(logger executor.Logger) *executor.Registry {
	if logger == nil {
		logger = executor.NopLogger{}
	}
	r := executor.NewRegistry()

	r.RegisterFactory("local", func(string) (executor.Executor, error) {
		opts := []local.Option{
			local.WithAuthorizedImports(c.Executor.AuthorizedImports),
			local.WithLogger(logger),
		}
		if c.Executor.MaxOps > 0 {
			opts = append(opts, local.WithMaxOps(c.Executor.MaxOps))
		}
		if c.Executor.MaxWhileIterations > 0 {
			opts = append(opts, local.WithMaxWhileIterations(c.Executor.MaxWhileIterations))
		}
		if c.Executor.MaxLogBytes > 0 {
			opts = append(opts, local.WithMaxLogBytes(c.Executor.MaxLogBytes))
		}
		return local.New(opts...), nil
	})

	r.RegisterFactory("docker", func(string) (executor.Executor, error) {
		return docker.New(docker.Config{
			Image:          c.Docker.Image,
			Port:           c.Docker.Port,
			Token:          c.Docker.Token,
			GatewayURL:     c.Docker.GatewayURL,
			StartTimeout:   time.Duration(c.Docker.StartTimeoutSec) * time.Second,
			ExecuteTimeout: c.ExecuteTimeout(),
			Logger:         logger,
		}), nil
	})

	r.RegisterFactory("cloudvm", func(string) (executor.Executor, error) {
		return cloudvm.New(cloudvm.Config{
			Provisioner:    cloudvm.NewRESTProvisioner(c.CloudVM.URL, c.CloudVM.APIKey),
			ExecuteTimeout: c.ExecuteTimeout(),
			Logger:         logger,
		})
	})

	r.RegisterFactory("sandboxapi", func(string) (executor.Executor, error) {
		return sandboxapi.New(sandboxapi.Config{
			Client: sandboxapi.NewHTTPClient(c.Sandbox.URL, c.Sandbox.APIKey),
			Logger: logger,
		})
	})

	r.RegisterFactory("wasm", func(string) (executor.Executor, error) {
		return wasm.New(wasm.Config{
			Command:        c.Wasm.Command,
			Port:           c.Wasm.Port,
			BaseURL:        c.Wasm.BaseURL,
			StartTimeout:   time.Duration(c.Wasm.StartTimeoutSec) * time.Second,
			RequestTimeout: c.ExecuteTimeout(),
			Logger:         logger,
		}), nil
	})

	return r
}

// NewExecutor builds the configured backend.
func (c *Config) NewExecutor(logger executor.Logger) (executor.Executor, error) {
	return c.Registry(logger).Create(c.Executor.Kind, "default")
}
