package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/model"
	"github.com/hitoshi/todosync/internal/session"
)

// newFlagSet はエラー時に終了せず、pflagの出力を破棄するFlagSetを返す。
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// runList は一覧を1ページ分表示する。
func runList(ctx context.Context, d *Deps, out io.Writer, args []string) error {
	current := d.List.Params()

	fs := newFlagSet("list")
	page := fs.IntP("page", "p", current.Page, "ページ番号（1以上）")
	pageSize := fs.IntP("page-size", "n", current.PageSize, "ページサイズ（10, 50, 100）")
	sortFlag := fs.StringP("sort", "s", string(current.SortDirection), "並び順（asc/desc, oldest/latest）")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if _, err := d.List.SetPage(*page); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if _, err := d.List.SetPageSize(*pageSize); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	dir, ok := model.ParseSortDirection(*sortFlag)
	if !ok {
		return fmt.Errorf("list: invalid sort %q", *sortFlag)
	}
	if _, err := d.List.SetSort(dir); err != nil {
		return fmt.Errorf("list: %w", err)
	}

	view, err := d.List.Load(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	renderPage(out, view, d.Sanitizer)
	if view.Err != nil {
		return fmt.Errorf("list: %w", view.Err)
	}
	return nil
}

// runMine はログインユーザーが所有するtodoを表示する。
func runMine(ctx context.Context, d *Deps, out io.Writer, args []string) error {
	fs := newFlagSet("mine")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("mine: %w", err)
	}

	todos, err := loadOwnerTodos(ctx, d)
	if err != nil {
		fmt.Fprintln(out, "Error loading todos")
		return fmt.Errorf("mine: %w", err)
	}
	renderOwnerTodos(out, todos, d.Sanitizer)
	return nil
}

func loadOwnerTodos(ctx context.Context, d *Deps) ([]model.Todo, error) {
	r, err := d.Cache.Await(ctx, api.OwnerTodosRequest())
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return api.DecodeOwnerTodos(r.Data)
}

// runGenerate はダミーのtodoを作成する。
func runGenerate(ctx context.Context, d *Deps, out io.Writer, args []string) error {
	fs := newFlagSet("generate")
	count := fs.IntP("count", "c", d.Config.GenerateCount, "作成する件数")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if *count < 1 {
		return fmt.Errorf("generate: count must be >= 1: %d", *count)
	}
	if _, ok := d.Session.Current(); !ok {
		return fmt.Errorf("generate: %w", model.NewNoCredentialError())
	}

	created := d.Seeder.Run(ctx, *count)
	fmt.Fprintf(out, "created %d/%d todos\n", created, *count)
	return nil
}

// runLogin は外部で取得したトークンとユーザーIDをセッションファイルに保存する。
// 資格情報の交換は行わない。
func runLogin(d *Deps, out io.Writer, args []string) error {
	fs := newFlagSet("login")
	token := fs.StringP("token", "t", "", "ベアラートークン（JWT）")
	userID := fs.IntP("user", "u", 0, "ユーザーID")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if *token == "" || *userID < 1 {
		return errors.New("login: --token and --user are required")
	}

	raw := session.StripBearer(*token)
	if session.Expired(raw, time.Now()) {
		return fmt.Errorf("login: %w", model.NewExpiredTokenError(nil))
	}
	if err := d.Store.Save(model.Session{Token: raw, UserID: *userID}); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(out, "logged in as user %d (%s)\n", *userID, d.Store.Path())
	if exp, ok := session.Expiry(raw); ok {
		fmt.Fprintf(out, "token expires at %s %s\n", api.FormatDate(exp), api.FormatTime(exp))
	}
	return nil
}

// runLogout は保存されたセッションを削除する。
func runLogout(d *Deps, out io.Writer, args []string) error {
	fs := newFlagSet("logout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := d.Store.Delete(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(out, "logged out")
	if d.Config.EnvToken != "" {
		fmt.Fprintln(out, "TODO_TOKEN is still set in the environment")
	}
	return nil
}

// runHealthcheck はステータスエンドポイントの/healthにHTTPリクエストを送り、結果を返す。
func runHealthcheck(out io.Writer, args []string) error {
	defaultAddr := os.Getenv("METRICS_ADDR")
	if defaultAddr == "" {
		defaultAddr = "localhost:9090"
	}

	fs := newFlagSet("healthcheck")
	addr := fs.String("addr", defaultAddr, "ステータスエンドポイントのアドレス")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("healthcheck: %w", err)
	}

	target := *addr
	if strings.HasPrefix(target, ":") {
		target = "localhost" + target
	}
	url := fmt.Sprintf("http://%s/health", target)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	fmt.Fprintln(out, "ok")
	return nil
}
