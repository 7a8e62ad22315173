package app

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mypt/mypt/internal/auth"
	"github.com/mypt/mypt/internal/config"
	"github.com/mypt/mypt/internal/database"
	"github.com/mypt/mypt/internal/docstore"
	"github.com/mypt/mypt/internal/facade"
	"github.com/mypt/mypt/internal/handler"
	"github.com/mypt/mypt/internal/logger"
	"github.com/mypt/mypt/internal/metrics"
	"github.com/mypt/mypt/internal/middleware"
	"github.com/mypt/mypt/internal/repository"
	"github.com/mypt/mypt/internal/security"
	"github.com/mypt/mypt/internal/worker/cleanup"
)

// pingTimeout は起動時のDB疎通確認のタイムアウト。
const pingTimeout = 5 * time.Second

// trainerPasswordEnv はcreate-trainerで-passwordを省略した場合に参照する環境変数。
const trainerPasswordEnv = "MYPT_TRAINER_PASSWORD"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, cfg.SlogLevel())

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// サーバー設定を使わないサブコマンドはフル初期化をスキップする
	if !needsServerConfig(cmd) {
		switch cmd {
		case CommandClient:
			return runClient(w, commandArgs(args))
		case CommandHelp:
			PrintUsage(w)
			return nil
		default:
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(port)
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateTrainer:
		return runCreateTrainer(cfg, commandArgs(args))
	default:
		return runServe(cfg)
	}
}

// commandArgs はサブコマンド名を除いた残りの引数を返す。
func commandArgs(args []string) []string {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config, pool database.PoolConfig) (*sql.DB, error) {
	db, err := database.OpenWithPool(cfg.DatabaseURL, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, pingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// newRegistry はプロセス・ランタイムのメトリクスを登録済みのレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newFacade はDocumentStoreとユーザーリポジトリからデータアクセスのファサードを構築する。
func newFacade(cfg *config.Config, db *sql.DB, collector *metrics.Collector) *facade.Facade {
	store := docstore.NewInstrumented(docstore.NewPostgresStore(db), collector)
	return facade.New(
		store,
		repository.NewPostgresUserRepo(db),
		auth.NewBcryptHasher(cfg.BcryptCost),
		security.NewTextSanitizer(),
	)
}

// newRouter は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// DBへの接続はリクエスト処理時まで行わない。
func newRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) http.Handler {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 2. ドメインサービスの初期化
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	authService := auth.NewService(userRepo, credRepo, sessionRepo, hasher, collector, auth.ServiceConfig{
		SessionTimeout: cfg.SessionTimeout,
		SessionMaxAge:  cfg.SessionMaxAge,
	})

	// 3. ルーターの構築（レート制限はreq/min単位で設定する）
	deps := &handler.RouterDeps{
		Logger:            logger.Component("http"),
		Authenticator:     authService,
		StatusRecorder:    collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:   cfg.CookieDomain,
			CookieSecure:   cfg.CookieSecure,
			SessionMaxAge:  int(cfg.SessionMaxAge.Seconds()),
			SessionTimeout: cfg.SessionTimeout,
		},

		Data: newFacade(cfg, db, collector),
	}

	return handler.NewRouter(deps)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, db, newRegistry()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Duration("session_timeout", cfg.SessionTimeout),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、無操作セッションの掃除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg, database.PoolConfig{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	collector := metrics.NewCollector(newRegistry())
	job := cleanup.NewSessionCleanupJob(db, logger.Component("session-cleanup"), collector, cfg.SessionTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Duration("session_timeout", cfg.SessionTimeout),
	)

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// trainerArgs はcreate-trainerコマンドの引数。
type trainerArgs struct {
	Email    string
	Name     string
	Password string
}

// parseTrainerArgs はcreate-trainerの引数を解析する。
// -passwordが省略された場合はMYPT_TRAINER_PASSWORDを使う。
func parseTrainerArgs(args []string, output io.Writer) (trainerArgs, error) {
	var ta trainerArgs

	fs := flag.NewFlagSet(string(CommandCreateTrainer), flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&ta.Email, "email", "", "trainer email address")
	fs.StringVar(&ta.Name, "name", "", "trainer display name")
	fs.StringVar(&ta.Password, "password", "", "initial password (default $"+trainerPasswordEnv+")")

	if err := fs.Parse(args); err != nil {
		return trainerArgs{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if ta.Password == "" {
		ta.Password = os.Getenv(trainerPasswordEnv)
	}

	if err := facade.Validate(facade.CustomerInput{
		Email:    ta.Email,
		Name:     ta.Name,
		Password: ta.Password,
	}); err != nil {
		return trainerArgs{}, err
	}

	return ta, nil
}

// runCreateTrainer はトレーナーアカウントを作成する。
// トレーナーはAPIからは作成できないため、運用者がこのコマンドで登録する。
func runCreateTrainer(cfg *config.Config, args []string) error {
	ta, err := parseTrainerArgs(args, os.Stderr)
	if err != nil {
		return fmt.Errorf("create-trainer: %w", err)
	}

	db, err := openDatabase(cfg, database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	f := newFacade(cfg, db, collector)

	user, err := f.CreateTrainer(context.Background(), facade.CustomerInput{
		Email:    ta.Email,
		Name:     ta.Name,
		Password: ta.Password,
	})
	if err != nil {
		return fmt.Errorf("create-trainer: %w", err)
	}

	slog.Info("trainer account ready",
		slog.String("trainer_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
