package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/handler"
	"github.com/hitoshi/todosync/internal/model"
)

// LineReader は対話シェルの1行入力を提供する。liner.Stateが実装する。
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// errQuit はシェルの終了要求。
var errQuit = errors.New("quit")

// Shell は一覧の閲覧とtodoの作成・編集・削除を行う対話シェル。
type Shell struct {
	deps *Deps
	in   LineReader
	out  io.Writer

	// seen は直近に表示したtodo。edit/deleteの対象をIDで引く。
	seen      map[int]model.Todo
	pageCount int
}

// NewShell はShellの新しいインスタンスを生成する。
func NewShell(d *Deps, in LineReader, out io.Writer) *Shell {
	return &Shell{deps: d, in: in, out: out, seen: make(map[int]model.Todo)}
}

// runShell は端末上で対話シェルを起動する。
// METRICS_ADDRが設定されている場合はステータスエンドポイントを併せて起動する。
func runShell(ctx context.Context, d *Deps, out io.Writer) error {
	if d.Config.MetricsAddr != "" {
		shutdown, err := startStatusServer(d)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := filepath.Join(filepath.Dir(d.Config.SessionFile), "history")
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	return NewShell(d, line, out).Run(ctx)
}

// startStatusServer は/healthと/metricsを提供するHTTPサーバーを起動し、停止関数を返す。
func startStatusServer(d *Deps) (func(), error) {
	ln, err := net.Listen("tcp", d.Config.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", d.Config.MetricsAddr, err)
	}

	server := &http.Server{
		Handler: handler.NewRouter(&handler.RouterDeps{
			Logger:   d.Logger,
			Session:  d.Session,
			Gatherer: d.Registry,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		d.Logger.Info("status server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.Logger.Error("status server error", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			d.Logger.Error("status server shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}

// Run はプロンプトを表示し、入力が終わるかquitが入力されるまでコマンドを処理する。
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "todosync - type 'help' for commands")
	s.list(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := s.in.Prompt("todos> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.in.AppendHistory(line)

		if err := s.exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *Shell) exec(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.help()
	case "list", "ls":
		s.list(ctx)
	case "next", "n":
		s.deps.List.Next()
		s.list(ctx)
	case "prev", "p":
		s.deps.List.Prev()
		s.list(ctx)
	case "page":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		if _, err := s.deps.List.SetPage(n); err != nil {
			return err
		}
		s.list(ctx)
	case "size":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		if _, err := s.deps.List.SetPageSize(n); err != nil {
			return err
		}
		s.list(ctx)
	case "sort":
		if len(args) != 1 {
			return errors.New("usage: sort asc|desc")
		}
		dir, ok := model.ParseSortDirection(args[0])
		if !ok {
			return fmt.Errorf("invalid sort %q", args[0])
		}
		if _, err := s.deps.List.SetSort(dir); err != nil {
			return err
		}
		s.list(ctx)
	case "clamp":
		if s.deps.List.Clamp(s.pageCount) {
			s.list(ctx)
		}
	case "refresh":
		s.deps.Cache.Invalidate(api.ResourceTodos)
		s.list(ctx)
	case "mine":
		todos, err := loadOwnerTodos(ctx, s.deps)
		if err != nil {
			fmt.Fprintln(s.out, "Error loading todos")
			return err
		}
		s.remember(todos)
		renderOwnerTodos(s.out, todos, s.deps.Sanitizer)
	case "add":
		return s.add(ctx)
	case "edit":
		t, err := s.target(args)
		if err != nil {
			return err
		}
		return s.edit(ctx, t)
	case "delete", "del", "rm":
		t, err := s.target(args)
		if err != nil {
			return err
		}
		return s.remove(ctx, t)
	case "generate":
		n := s.deps.Config.GenerateCount
		if len(args) > 0 {
			v, err := intArg(args)
			if err != nil {
				return err
			}
			if v < 1 {
				return fmt.Errorf("generate: count must be >= 1: %d", v)
			}
			n = v
		}
		created := s.deps.Seeder.Run(ctx, n)
		fmt.Fprintf(s.out, "created %d/%d todos\n", created, n)
		s.list(ctx)
	case "whoami":
		if sess, ok := s.deps.Session.Current(); ok {
			fmt.Fprintf(s.out, "user %d\n", sess.UserID)
		} else {
			fmt.Fprintln(s.out, "not logged in")
		}
	case "logout":
		if err := s.deps.Store.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "logged out")
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return nil
}

func (s *Shell) list(ctx context.Context) {
	view, err := s.deps.List.Load(ctx)
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	s.pageCount = view.Page.PageCount
	s.remember(view.Page.Todos)
	renderPage(s.out, view, s.deps.Sanitizer)
}

func (s *Shell) remember(todos []model.Todo) {
	for _, t := range todos {
		s.seen[t.ID] = t
	}
}

func (s *Shell) target(args []string) (model.Todo, error) {
	id, err := intArg(args)
	if err != nil {
		return model.Todo{}, err
	}
	t, ok := s.seen[id]
	if !ok {
		return model.Todo{}, fmt.Errorf("todo %d is not on screen; run 'list' or 'mine' first", id)
	}
	return t, nil
}

func (s *Shell) add(ctx context.Context) error {
	if err := s.deps.CRUD.OpenAdd(); err != nil {
		return err
	}
	return s.fillAndSubmit(ctx)
}

func (s *Shell) edit(ctx context.Context, t model.Todo) error {
	if err := s.deps.CRUD.OpenEdit(t); err != nil {
		return err
	}
	return s.fillAndSubmit(ctx)
}

// fillAndSubmit はフォームの値を入力させて送信する。
// 送信に失敗した場合はモーダルを開いたまま再送信するかを確認する。
func (s *Shell) fillAndSubmit(ctx context.Context) error {
	current := s.deps.CRUD.State().Form
	title, err := s.promptField("title", current.Title)
	if err != nil {
		return s.deps.CRUD.Cancel()
	}
	desc, err := s.promptField("description", current.Description)
	if err != nil {
		return s.deps.CRUD.Cancel()
	}
	form := model.FormState{Title: title, Description: desc}

	for {
		ok, err := s.deps.CRUD.Submit(ctx, form)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(s.out, "saved")
			s.list(ctx)
			return nil
		}
		if !s.confirm("save failed; retry?") {
			return s.deps.CRUD.Cancel()
		}
	}
}

func (s *Shell) remove(ctx context.Context, t model.Todo) error {
	if err := s.deps.CRUD.OpenConfirm(t); err != nil {
		return err
	}
	if !s.confirm(fmt.Sprintf("delete [%d] %s?", t.ID, s.deps.Sanitizer.Clean(t.Title))) {
		return s.deps.CRUD.Cancel()
	}

	for {
		ok, err := s.deps.CRUD.Remove(ctx)
		if err != nil {
			return err
		}
		if ok {
			delete(s.seen, t.ID)
			fmt.Fprintln(s.out, "deleted")
			s.list(ctx)
			return nil
		}
		if !s.confirm("delete failed; retry?") {
			return s.deps.CRUD.Cancel()
		}
	}
}

// promptField は値を入力させる。空入力の場合はcurrentを返す。
func (s *Shell) promptField(name, current string) (string, error) {
	prompt := name + ": "
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]: ", name, current)
	}
	v, err := s.in.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if v = strings.TrimSpace(v); v == "" {
		return current, nil
	}
	return v, nil
}

func (s *Shell) confirm(question string) bool {
	answer, err := s.in.Prompt(question + " (yes/no): ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `Commands:
  list, ls            現在のページを表示する
  next, prev          ページを移動する
  page N              Nページ目に移動する
  size 10|50|100      ページサイズを変更する
  sort asc|desc       並び順を変更する
  clamp               最終ページを超えている場合に戻る
  refresh             一覧を再取得する
  mine                自分のtodoを表示する
  add                 todoを作成する
  edit ID             todoを編集する
  delete ID           todoを削除する
  generate [N]        ダミーのtodoを作成する
  whoami, logout      セッションを確認・削除する
  quit                終了する
`)
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one numeric argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}
