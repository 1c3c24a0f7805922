package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/config"
	"github.com/any-hub/esw-index/internal/logging"
	"github.com/any-hub/esw-index/internal/metrics"
	"github.com/any-hub/esw-index/internal/proxy"
	"github.com/any-hub/esw-index/internal/scope"
	"github.com/any-hub/esw-index/internal/server"
	"github.com/any-hub/esw-index/internal/server/routes"
	"github.com/any-hub/esw-index/internal/version"
	"github.com/any-hub/esw-index/internal/worker"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// shutdownTimeout 限制收到信号后等待在途请求结束的时间。
const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := configFields(cfg, "check_config", opts.configPath)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存后端 → worker install/activate → Fiber server。
	// install 未完成前不监听端口，保证第一个导航请求就能命中预热的入口文档。
	storage, err := cache.NewStorage(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存后端失败: %v\n", err)
		return 1
	}
	defer storage.Close()

	workerOpts, err := worker.OptionsFromConfig(cfg.Index)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 worker 配置失败: %v\n", err)
		return 1
	}

	collector := metrics.NewCollector()
	httpClient := server.NewUpstreamClient(cfg.Global)
	fetcher, err := proxy.NewFetcher(httpClient, cfg.Global.Upstream)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化上游失败: %v\n", err)
		return 1
	}
	passthrough, err := proxy.NewPassthrough(proxy.PassthroughOptions{
		Client:     httpClient,
		Upstream:   cfg.Global.Upstream,
		Logger:     logger,
		Observer:   collector,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化透传失败: %v\n", err)
		return 1
	}

	w, err := worker.New(workerOpts, worker.Dependencies{
		Storage:  storage,
		Fetcher:  fetcher,
		Matcher:  scope.NewMatcher(),
		Logger:   logger,
		Observer: collector,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建 worker 失败: %v\n", err)
		return 1
	}
	defer w.Close()

	fields := configFields(cfg, "startup", opts.configPath)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(stdErr, "worker 启动失败: %v\n", err)
		return 1
	}

	if err := startHTTPServer(ctx, cfg, w, passthrough, collector, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("esw-index", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ESW_INDEX_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ESW_INDEX_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func configFields(cfg *config.Config, action, configPath string) logrus.Fields {
	fields := logging.BaseFields(action, configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_backend"] = cfg.Global.StorageBackend
	fields["upstream"] = cfg.Global.Upstream
	fields["origin"] = cfg.Index.Origin
	fields["strategy"] = cfg.Index.Strategy
	fields["index_version"] = cfg.Index.Version
	fields["environment"] = cfg.Index.Environment
	fields["scope"] = cfg.Index.ScopeSummary()
	return fields
}

func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	w *worker.Worker,
	passthrough server.Passthrough,
	collector *metrics.Collector,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Worker:      w,
		Passthrough: passthrough,
		ListenPort:  port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnostics(app, w, collector.Registry())

	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("Fiber 服务关闭超时")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	err = app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
