// Package apitest はStrapi形式のtodo APIをメモリ上で再現するテスト用バックエンドを提供する。
// ページネーション・ソート・ベアラー認証・所有者による絞り込みを実装し、
// ルートごとの呼び出し回数の記録と失敗の注入ができる。
package apitest

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todosync/internal/middleware"
)

// ルート名。Hits/FailNextで使用する。
const (
	RouteList   = "GET /todos"
	RouteCreate = "POST /todos"
	RouteUpdate = "PUT /todos/{id}"
	RouteDelete = "DELETE /todos/{id}"
	RouteMe     = "GET /users/me"
)

const defaultPageSize = 25

type storedTodo struct {
	ID          int
	OwnerID     int
	Title       string
	Description string
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Request は受信したリクエストの記録。
type Request struct {
	Route         string
	Authorization string
	RequestID     string
	RawQuery      string
	Body          string
}

// Server はメモリ上のtodo API。
type Server struct {
	logger *slog.Logger

	mu       sync.Mutex
	tokens   map[string]int
	todos    []storedTodo
	nextID   int
	clock    time.Time
	hits     map[string]int
	failures map[string][]int
	requests []Request
}

// NewServer はServerの新しいインスタンスを生成する。
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Server{
		logger:   logger,
		tokens:   make(map[string]int),
		nextID:   1,
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		hits:     make(map[string]int),
		failures: make(map[string][]int),
	}
}

// AddUser はトークンとユーザーIDの組を登録する。
func (s *Server) AddUser(token string, userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

// UserIDForToken はmiddleware.TokenResolverを実装する。
func (s *Server) UserIDForToken(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	return id, ok
}

// Seed はtodoを追加してIDを返す。作成日時は追加順に1分ずつ進む。
func (s *Server) Seed(ownerID int, title, description string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ownerID, title, description)
}

// FailNext は指定したルートの次の呼び出しでstatusを返すようにする。
// 複数回呼ぶと順に消費される。
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Hits はルートの呼び出し回数を返す。認証で拒否された呼び出しは含まない。
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// Requests は受信したリクエストの記録を返す。
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count は保存されているtodoの件数を返す。
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

// Handler はAPIのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(s.logger))
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	r.Use(s.record)
	r.Use(middleware.NewBearerAuthMiddleware(s))

	r.Get("/todos", s.track(RouteList, s.list))
	r.Post("/todos", s.track(RouteCreate, s.create))
	r.Put("/todos/{id}", s.track(RouteUpdate, s.update))
	r.Delete("/todos/{id}", s.track(RouteDelete, s.remove))
	r.Get("/users/me", s.track(RouteMe, s.me))

	return r
}

// record は認証の成否に関わらずリクエストを記録する。
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Route:         r.Method + " " + r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(middleware.RequestIDHeader),
			RawQuery:      r.URL.RawQuery,
			Body:          string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// track は呼び出し回数を数え、注入された失敗があればそれを返す。
func (s *Server) track(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		var status int
		if q := s.failures[route]; len(q) > 0 {
			status = q[0]
			s.failures[route] = q[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			middleware.WriteErrorResponse(w, status, http.StatusText(status), "injected failure")
			return
		}
		h(w, r)
	}
}

type attributes struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"publishedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type dataEntry struct {
	ID         int        `json:"id"`
	Attributes attributes `json:"attributes"`
}

type paginationMeta struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listBody struct {
	Data []dataEntry `json:"data"`
	Meta struct {
		Pagination paginationMeta `json:"pagination"`
	} `json:"meta"`
}

type singleBody struct {
	Data dataEntry `json:"data"`
	Meta struct{}  `json:"meta"`
}

type writePayload struct {
	Data struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		User        []int   `json:"user"`
	} `json:"data"`
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("pagination[page]"), 1)
	pageSize := positiveInt(q.Get("pagination[pageSize]"), defaultPageSize)
	desc := strings.EqualFold(q.Get("sort"), "createdAt:DESC")

	s.mu.Lock()
	todos := append([]storedTodo(nil), s.todos...)
	s.mu.Unlock()

	sort.SliceStable(todos, func(i, j int) bool {
		if desc {
			return todos[i].CreatedAt.After(todos[j].CreatedAt)
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})

	var body listBody
	body.Data = []dataEntry{}
	start := (page - 1) * pageSize
	for i := start; i < len(todos) && i < start+pageSize; i++ {
		body.Data = append(body.Data, toEntry(todos[i]))
	}
	body.Meta.Pagination = paginationMeta{
		Page:      page,
		PageSize:  pageSize,
		PageCount: int(math.Ceil(float64(len(todos)) / float64(pageSize))),
		Total:     len(todos),
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var p writePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}
	if p.Data.Title == nil || strings.TrimSpace(*p.Data.Title) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "ValidationError", "title is required")
		return
	}
	owner, _ := middleware.UserIDFromContext(r.Context())
	if len(p.Data.User) > 0 {
		owner = p.Data.User[0]
	}
	desc := ""
	if p.Data.Description != nil {
		desc = *p.Data.Description
	}

	s.mu.Lock()
	id := s.insertLocked(owner, *p.Data.Title, desc)
	t, _ := s.findLocked(id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, singleBody{Data: toEntry(t)})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	var p writePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "ValidationError", "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexLocked(id)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	if p.Data.Title != nil {
		if strings.TrimSpace(*p.Data.Title) == "" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, "ValidationError", "title is required")
			return
		}
		s.todos[i].Title = *p.Data.Title
	}
	if p.Data.Description != nil {
		s.todos[i].Description = *p.Data.Description
	}
	s.todos[i].UpdatedAt = s.tickLocked()
	writeJSON(w, http.StatusOK, singleBody{Data: toEntry(s.todos[i])})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.indexLocked(id)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	t := s.todos[i]
	s.todos = append(s.todos[:i], s.todos[i+1:]...)
	writeJSON(w, http.StatusOK, singleBody{Data: toEntry(t)})
}

type ownerTodo struct {
	ID int `json:"id"`
	attributes
}

type meBody struct {
	ID       int         `json:"id"`
	Username string      `json:"username"`
	Todos    []ownerTodo `json:"todos,omitempty"`
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	body := meBody{ID: userID, Username: "user" + strconv.Itoa(userID)}

	if r.URL.Query().Get("populate") == "todos" {
		body.Todos = []ownerTodo{}
		s.mu.Lock()
		for _, t := range s.todos {
			if t.OwnerID == userID {
				body.Todos = append(body.Todos, ownerTodo{ID: t.ID, attributes: toEntry(t).Attributes})
			}
		}
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) insertLocked(ownerID int, title, description string) int {
	now := s.tickLocked()
	t := storedTodo{
		ID:          s.nextID,
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.todos = append(s.todos, t)
	return t.ID
}

func (s *Server) tickLocked() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *Server) indexLocked(id int) (int, bool) {
	for i, t := range s.todos {
		if t.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Server) findLocked(id int) (storedTodo, bool) {
	i, ok := s.indexLocked(id)
	if !ok {
		return storedTodo{}, false
	}
	return s.todos[i], true
}

func toEntry(t storedTodo) dataEntry {
	published := t.PublishedAt
	return dataEntry{
		ID: t.ID,
		Attributes: attributes{
			Title:       t.Title,
			Description: t.Description,
			PublishedAt: &published,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		},
	}
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
