package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/config"
	"github.com/hitoshi/todosync/internal/crud"
	"github.com/hitoshi/todosync/internal/logger"
	"github.com/hitoshi/todosync/internal/metrics"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/pagination"
	"github.com/hitoshi/todosync/internal/query"
	"github.com/hitoshi/todosync/internal/security"
	"github.com/hitoshi/todosync/internal/session"
	"github.com/hitoshi/todosync/internal/transport"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// ログはwに出力する（nilの場合は標準エラー出力）。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Deps は各コマンドが使用する依存関係をまとめた構造体。
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Store     *session.FileStore
	Session   session.Provider
	API       *api.Client
	Cache     *query.Cache
	List      *pagination.Controller
	CRUD      *crud.Orchestrator
	Seeder    *crud.Seeder
	Sanitizer security.TextSanitizer
}

// NewDeps は設定から全依存関係をワイヤリングする。
// httpClientがnilの場合はcfg.RequestTimeoutを持つクライアントを使用する。
func NewDeps(cfg *config.Config, log *slog.Logger, httpClient *http.Client) *Deps {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	// 2. セッション（環境変数のトークンをファイルより優先する）
	store := session.NewFileStore(cfg.SessionFile, cfg.SessionStore, log)
	provider := session.Chain{
		session.Static(model.Session{Token: session.StripBearer(cfg.EnvToken), UserID: cfg.EnvUserID}),
		store,
	}

	// 3. トランスポートとAPIクライアント
	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), max(cfg.RequestBurst, 1))
	}
	requester := transport.NewClient(httpClient, cfg.APIBaseURL, limiter, log, collector)
	client := api.NewClient(requester, provider, log)

	// 4. クエリキャッシュと一覧・変更の調停
	cache := query.NewCache(client, log, collector)
	sortDir, ok := model.ParseSortDirection(cfg.DefaultSort)
	if !ok {
		sortDir = model.SortDescending
	}
	list := pagination.NewController(cache, model.ListParams{
		Page:          1,
		PageSize:      cfg.DefaultPageSize,
		SortDirection: sortDir,
	})
	orchestrator := crud.NewOrchestrator(client, cache, log, collector)
	seeder := crud.NewSeeder(client, cache, 0, log, collector)

	return &Deps{
		Config:    cfg,
		Logger:    log,
		Registry:  reg,
		Store:     store,
		Session:   provider,
		API:       client,
		Cache:     cache,
		List:      list,
		CRUD:      orchestrator,
		Seeder:    seeder,
		Sanitizer: security.NewTextSanitizer(),
	}
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。コマンドの出力はout、ログはlogOutに書き込む。
func Run(out, logOut io.Writer, args []string) error {
	cmd := ParseCommand(args)
	rest := commandArgs(args)

	switch cmd {
	case CommandHelp:
		fmt.Fprint(out, usage)
		if len(args) > 0 && args[0] != "help" && args[0] != "-h" && args[0] != "--help" {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		return nil
	case CommandHealthcheck:
		// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
		return runHealthcheck(out, rest)
	}

	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	d := NewDeps(cfg, slog.Default(), nil)

	slog.Debug("starting application",
		slog.String("command", string(cmd)),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandList:
		return runList(ctx, d, out, rest)
	case CommandMine:
		return runMine(ctx, d, out, rest)
	case CommandGenerate:
		return runGenerate(ctx, d, out, rest)
	case CommandLogin:
		return runLogin(d, out, rest)
	case CommandLogout:
		return runLogout(d, out, rest)
	default:
		return runShell(ctx, d, out)
	}
}

// ExitCode はエラーに対応する終了コードを返す。
// 認証エラーは2、それ以外のエラーは1とする。
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, model.ErrAuth):
		return 2
	default:
		return 1
	}
}
