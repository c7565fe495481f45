// Package screens отдаёт состояние экранов и принимает действия пользователя по HTTP.
package screens

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/objectstore"
	"chronoplan/internal/domain"
	httpinfra "chronoplan/internal/infra/http"
	"chronoplan/internal/mapper"
	"chronoplan/internal/presentation/agenda"
	"chronoplan/internal/presentation/akun"
	"chronoplan/internal/presentation/auth"
	"chronoplan/internal/presentation/home"
	"chronoplan/internal/presentation/navigation"
	"chronoplan/internal/presentation/note"
	"chronoplan/internal/usecase/achievement"
)

// EmailConfirmer подтверждает адрес по токену из письма.
type EmailConfirmer interface {
	ConfirmEmail(ctx context.Context, token string) (string, error)
}

// Deps: зависимости обработчика.
type Deps struct {
	Repo         domain.ChronoRepository
	Reminders    agenda.Reminders
	Achievements *achievement.Service
	Confirmer    EmailConfirmer
	Files        objectstore.Reader
	// ContinueURL задаёт веб-адрес, на чей origin разрешено возвращать после
	// подтверждения почты. Диплинки приложения разрешены всегда.
	ContinueURL string
	Location    *time.Location
	Logger      zerolog.Logger
}

type linkResolver interface {
	Start() navigation.Route
	Handle(ctx context.Context, raw string) (navigation.Target, error)
}

// Handler держит модели экранов одного пользователя. Модели главных экранов
// создаются при появлении сессии и закрываются при её завершении.
type Handler struct {
	deps   Deps
	signIn *auth.SignIn
	signUp *auth.SignUp
	links  linkResolver
	log    zerolog.Logger

	mu   sync.Mutex
	main *mainScreens
}

type mainScreens struct {
	uid    string
	home   *home.ViewModel
	agenda *agenda.ViewModel
	note   *note.ViewModel
	akun   *akun.ViewModel
}

func (m *mainScreens) close() {
	m.home.Close()
	m.agenda.Close()
	m.note.Close()
	m.akun.Close()
}

func NewHandler(deps Deps) *Handler {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Handler{
		deps:   deps,
		signIn: auth.NewSignIn(deps.Repo, deps.Logger),
		signUp: auth.NewSignUp(deps.Repo, deps.Logger),
		links:  navigation.NewHandler(deps.Repo, deps.Logger),
		log:    deps.Logger.With().Str("component", "screens").Logger(),
	}
}

// Close закрывает все модели.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.main != nil {
		h.main.close()
		h.main = nil
	}
	h.signIn.Close()
	h.signUp.Close()
}

func (h *Handler) current() *mainScreens {
	h.mu.Lock()
	defer h.mu.Unlock()
	uid, ok := h.deps.Repo.CurrentUserID()
	if h.main != nil && (!ok || h.main.uid != uid) {
		h.log.Info().Str("uid", h.main.uid).Msg("session ended, closing screens")
		h.main.close()
		h.main = nil
	}
	if ok && h.main == nil {
		h.main = &mainScreens{
			uid:    uid,
			home:   home.New(h.deps.Repo, h.deps.Location, h.deps.Logger),
			agenda: agenda.New(h.deps.Repo, h.deps.Reminders, h.deps.Location, h.deps.Logger),
			note:   note.New(h.deps.Repo, h.deps.Logger),
			akun:   akun.New(h.deps.Repo, h.deps.Achievements, h.deps.Location, h.deps.Logger),
		}
	}
	return h.main
}

// Routes регистрирует маршруты.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/auth/verify", h.verifyEmail)
	r.Get("/open", h.openLink)
	r.Get("/files/*", h.serveFile)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/start", func(w http.ResponseWriter, _ *http.Request) {
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"route": string(h.links.Start())})
		})
		api.Get("/signin", func(w http.ResponseWriter, _ *http.Request) {
			httpinfra.WriteJSON(w, http.StatusOK, signInJSON(h.signIn.State()))
		})
		api.Post("/signin", h.postSignIn)
		api.Get("/signup", func(w http.ResponseWriter, _ *http.Request) {
			httpinfra.WriteJSON(w, http.StatusOK, signUpJSON(h.signUp.State()))
		})
		api.Post("/signup", h.postSignUp)
		api.Post("/signup/dismiss", func(w http.ResponseWriter, _ *http.Request) {
			h.signUp.DismissVerificationDialog()
			httpinfra.WriteJSON(w, http.StatusOK, signUpJSON(h.signUp.State()))
		})

		api.Group(func(p chi.Router) {
			p.Use(h.requireSession)

			p.Get("/home", func(w http.ResponseWriter, r *http.Request) {
				httpinfra.WriteJSON(w, http.StatusOK, homeJSON(screensFrom(r).home.State()))
			})

			p.Get("/agenda", func(w http.ResponseWriter, r *http.Request) {
				httpinfra.WriteJSON(w, http.StatusOK, agendaStateJSON(screensFrom(r).agenda.State()))
			})
			p.Put("/agenda/date", h.changeDate)
			p.Post("/agendas", h.addAgenda)
			p.Put("/agendas/{id}", h.updateAgenda)
			p.Post("/agendas/{id}/toggle", h.intent(func(m *mainScreens, id string) { m.agenda.ToggleTaskDone(id) }))
			p.Delete("/agendas/{id}", h.intent(func(m *mainScreens, id string) { m.agenda.DeleteAgenda(id) }))

			p.Get("/notes", func(w http.ResponseWriter, r *http.Request) {
				vm := screensFrom(r).note
				if q, ok := r.URL.Query()["q"]; ok {
					vm.Search(strings.Join(q, " "))
				}
				httpinfra.WriteJSON(w, http.StatusOK, noteStateJSON(vm.State()))
			})
			p.Post("/notes", h.addNote)
			p.Put("/notes/{id}", h.updateNote)
			p.Post("/notes/{id}/favorite", h.intent(func(m *mainScreens, id string) { m.note.ToggleFavorite(id) }))
			p.Delete("/notes/{id}", h.intent(func(m *mainScreens, id string) { m.note.DeleteNote(id) }))
			p.Post("/notes/attachments", h.upload(func(m *mainScreens, body io.Reader) { m.note.UploadAttachment(body) }))

			p.Get("/akun", func(w http.ResponseWriter, r *http.Request) {
				httpinfra.WriteJSON(w, http.StatusOK, akunJSON(screensFrom(r).akun.State()))
			})
			p.Post("/akun/avatar", h.upload(func(m *mainScreens, body io.Reader) { m.akun.UploadAvatar(body) }))
			p.Put("/akun/name", h.rename)
			p.Put("/akun/calendar", h.calendarSync)
			p.Post("/akun/logout", func(w http.ResponseWriter, r *http.Request) {
				screensFrom(r).akun.Logout()
				accepted(w)
			})
		})
	})
}

type ctxKey struct{}

func screensFrom(r *http.Request) *mainScreens {
	return r.Context().Value(ctxKey{}).(*mainScreens)
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := h.current()
		if m == nil {
			httpinfra.WriteError(w, http.StatusUnauthorized, "Belum login")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, m)))
	})
}

func accepted(w http.ResponseWriter) {
	httpinfra.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) intent(fn func(m *mainScreens, id string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(screensFrom(r), chi.URLParam(r, "id"))
		accepted(w)
	}
}

// upload читает тело целиком: модель загружает его уже после ответа.
func (h *Handler) upload(fn func(m *mainScreens, body io.Reader)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, objectstore.MaxObjectSize+1))
		if err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		if len(data) > objectstore.MaxObjectSize {
			httpinfra.WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		fn(screensFrom(r), bytes.NewReader(data))
		accepted(w)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeFields(r *http.Request) (map[string]any, error) {
	m := map[string]any{}
	if err := decode(r, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func merge(base, patch map[string]any) map[string]any {
	for k, v := range patch {
		base[k] = v
	}
	return base
}

func (h *Handler) postSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.signIn.OnEmailChange(req.Email)
	h.signIn.OnPasswordChange(req.Password)
	h.signIn.SignIn()
	httpinfra.WriteJSON(w, http.StatusAccepted, signInJSON(h.signIn.State()))
}

func (h *Handler) postSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
		Password    string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.signUp.OnDisplayNameChange(req.DisplayName)
	h.signUp.OnEmailChange(req.Email)
	h.signUp.OnPasswordChange(req.Password)
	h.signUp.SignUp()
	httpinfra.WriteJSON(w, http.StatusAccepted, signUpJSON(h.signUp.State()))
}

func (h *Handler) changeDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date  int64 `json:"date"`
		Today bool  `json:"today"`
	}
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vm := screensFrom(r).agenda
	if req.Today {
		vm.ResetToToday()
	} else {
		vm.ChangeDate(req.Date)
	}
	httpinfra.WriteJSON(w, http.StatusOK, agendaStateJSON(vm.State()))
}

func (h *Handler) addAgenda(w http.ResponseWriter, r *http.Request) {
	m, err := decodeFields(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	screensFrom(r).agenda.AddAgenda(mapper.AgendaFromRemote("", m))
	accepted(w)
}

func (h *Handler) updateAgenda(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeFields(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vm := screensFrom(r).agenda
	id := chi.URLParam(r, "id")
	var cur *domain.Agenda
	for _, a := range vm.State().Agendas {
		if a.ID == id {
			cur = &a
			break
		}
	}
	if cur == nil {
		httpinfra.WriteError(w, http.StatusNotFound, "agenda not found")
		return
	}
	vm.UpdateAgenda(mapper.AgendaFromRemote(id, merge(mapper.AgendaToRemote(*cur), patch)))
	accepted(w)
}

func (h *Handler) addNote(w http.ResponseWriter, r *http.Request) {
	m, err := decodeFields(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	screensFrom(r).note.AddNote(mapper.NoteFromRemote("", m))
	accepted(w)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeFields(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vm := screensFrom(r).note
	id := chi.URLParam(r, "id")
	var cur *domain.Note
	for _, n := range vm.State().Notes {
		if n.ID == id {
			cur = &n
			break
		}
	}
	if cur == nil {
		httpinfra.WriteError(w, http.StatusNotFound, "note not found")
		return
	}
	vm.UpdateNote(mapper.NoteFromRemote(id, merge(mapper.NoteToRemote(*cur), patch)))
	accepted(w)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	screensFrom(r).akun.UpdateUsername(req.Name)
	accepted(w)
}

func (h *Handler) calendarSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vm := screensFrom(r).akun
	vm.ToggleCalendarSync(req.Enabled)
	httpinfra.WriteJSON(w, http.StatusOK, akunJSON(vm.State()))
}

// verifyEmail обрабатывает ссылку из письма и возвращает пользователя в приложение.
func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := q.Get("continueUrl")
	if next != "" && !h.allowedContinue(next) {
		h.log.Warn().Str("continue_url", next).Msg("continue url rejected")
		httpinfra.WriteError(w, http.StatusBadRequest, "continueUrl not allowed")
		return
	}
	uid, err := h.deps.Confirmer.ConfirmEmail(r.Context(), q.Get("token"))
	if err != nil {
		h.log.Info().Err(err).Msg("email verification rejected")
		switch domain.KindOf(err) {
		case domain.KindValidationFailed:
			httpinfra.WriteError(w, http.StatusBadRequest, "invalid or expired token")
		case domain.KindNotFound:
			httpinfra.WriteError(w, http.StatusNotFound, "account not found")
		default:
			httpinfra.WriteError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}
	h.log.Info().Str("uid", uid).Msg("email confirmed")
	if next != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified", "uid": uid})
}

// allowedContinue пропускает диплинки приложения и адреса с origin настроенного ContinueURL.
func (h *Handler) allowedContinue(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == domain.DeepLinkScheme {
		return true
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	base, err := url.Parse(h.deps.ContinueURL)
	if err != nil || base.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// openLink обрабатывает ссылку приложения. Для ссылки на агенду сразу открывает её карточку.
func (h *Handler) openLink(w http.ResponseWriter, r *http.Request) {
	target, err := h.links.Handle(r.Context(), r.URL.Query().Get("link"))
	switch {
	case errors.Is(err, navigation.ErrUnknownLink):
		httpinfra.WriteError(w, http.StatusBadRequest, "unknown link")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("open link")
		httpinfra.WriteError(w, http.StatusBadGateway, "link handling failed")
		return
	}
	resp := map[string]any{"route": string(target.Route)}
	if target.Route == navigation.RouteAgenda {
		resp["agendaId"] = target.AgendaID
		if m := h.current(); m != nil {
			resp["found"] = m.agenda.ShowAgendaByID(target.AgendaID)
		}
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	path, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "bad path")
		return
	}
	obj, err := h.deps.Files.Open(r.Context(), path)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			httpinfra.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		h.log.Error().Err(err).Str("path", path).Msg("open object")
		httpinfra.WriteError(w, http.StatusInternalServerError, "storage error")
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(obj.Data)
}
