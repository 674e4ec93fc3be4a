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
	"golang.org/x/sync/errgroup"

	"github.com/thaiguide/imagecache/internal/cache"
	"github.com/thaiguide/imagecache/internal/config"
	"github.com/thaiguide/imagecache/internal/logging"
	"github.com/thaiguide/imagecache/internal/proxy"
	"github.com/thaiguide/imagecache/internal/server"
	"github.com/thaiguide/imagecache/internal/server/routes"
	"github.com/thaiguide/imagecache/internal/version"
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

const shutdownTimeout = 5 * time.Second

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

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.CacheDir()
		fields["listen"] = cfg.ListenAddr()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 磁盘缓存 → Coordinator → 分发器 → Fiber server”顺序，
	// 保证所有请求共享同一份缓存软状态。
	svc, err := buildService(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen"] = cfg.ListenAddr()
	fields["cache_dir"] = cfg.CacheDir()
	fields["max_bytes"] = svc.coord.Sweeper().MaxBytes()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, svc, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务异常退出: %v\n", err)
		return 1
	}
	return 0
}

// service 聚合一次进程生命周期内共享的组件。
type service struct {
	app   *fiber.App
	coord *proxy.Coordinator
}

func buildService(cfg *config.Config, logger *logrus.Logger) (*service, error) {
	store, err := cache.NewStore(cfg.CacheDir())
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	fetcher := proxy.NewHTTPFetcher(server.NewUpstreamClient(cfg, logger), userAgent)

	coord, err := proxy.NewCoordinator(proxy.CoordinatorOptions{
		Store:   store,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	forwarder := proxy.NewForwarder(logger)
	if err := forwarder.Register(proxy.OperationRegistration{
		Key:     proxy.ImageOperation,
		Handler: proxy.NewHandler(coord, logger),
	}); err != nil {
		return nil, err
	}

	resolver, err := server.NewOperationResolver(cfg.ListenHost, forwarder.Keys()...)
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Resolver: resolver,
		Proxy:    forwarder,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterCacheRoutes(app, routes.Options{
		Admin:          coord,
		Logger:         logger,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	return &service{app: app, coord: coord}, nil
}

// serve 在 errgroup 中同时运行监听、后台维护与优雅退出，任一失败即整体退出。
func serve(ctx context.Context, cfg *config.Config, svc *service, logger *logrus.Logger) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"addr":   cfg.ListenAddr(),
		}).Info("Fiber 服务启动")
		return svc.app.Listen(cfg.ListenAddr(), fiber.ListenConfig{DisableStartupMessage: true})
	})

	group.Go(func() error {
		return svc.coord.Run(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号，停止服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return svc.app.ShutdownWithContext(shutdownCtx)
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("imagecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 IMAGECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("IMAGECACHE_CONFIG")
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
