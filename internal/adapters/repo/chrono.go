package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/gateway"
	"chronoplan/internal/domain"
	"chronoplan/internal/mapper"
	"chronoplan/internal/stream"
)

// Chrono реализует domain.ChronoRepository поверх Gateway. Идентификатор пользователя
// определяется в момент каждой операции.
type Chrono struct {
	gw  *gateway.Gateway
	loc *time.Location
	now func() time.Time
	log zerolog.Logger

	mu   sync.Mutex
	done chan struct{}
}

var _ domain.ChronoRepository = (*Chrono)(nil)

// NewChrono создаёт репозиторий. loc задаёт часовой пояс календарных дней.
func NewChrono(gw *gateway.Gateway, loc *time.Location, logger zerolog.Logger) *Chrono {
	if loc == nil {
		loc = time.Local
	}
	return &Chrono{
		gw:   gw,
		loc:  loc,
		now:  time.Now,
		log:  logger.With().Str("component", "repository").Logger(),
		done: make(chan struct{}),
	}
}

// SetClock подменяет источник времени.
func (r *Chrono) SetClock(now func() time.Time) { r.now = now }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.E(domain.KindUnknown, op, err)
}

func (r *Chrono) uid(op string) (string, error) {
	uid, ok := r.gw.UserID()
	if !ok {
		return "", domain.E(domain.KindNotAuthenticated, op, nil)
	}
	return uid, nil
}

func (r *Chrono) session() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// endSession завершает живые потоки текущей сессии.
func (r *Chrono) endSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.done)
	r.done = make(chan struct{})
}

// SignIn входит и требует подтверждённый email. Неподтверждённая сессия закрывается.
func (r *Chrono) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	const op = "sign in"
	if r.gw.CurrentUser() != nil {
		r.endSession()
	}
	id, err := r.gw.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return domain.Identity{}, wrap(op, err)
	}
	if !id.EmailVerified {
		_ = r.SignOut(ctx)
		return domain.Identity{}, domain.E(domain.KindEmailUnverified, op, nil)
	}
	r.log.Info().Str("uid", id.UID).Msg("signed in")
	return id, nil
}

// SignUp создаёт учётную запись, отправляет письмо подтверждения, пишет профиль
// и закрывает сессию.
func (r *Chrono) SignUp(ctx context.Context, email, password, displayName string) (string, error) {
	const op = "sign up"
	id, err := r.gw.CreateAccount(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return "", wrap(op, err)
	}
	logger := r.log.With().Str("uid", id.UID).Logger()
	if err := r.gw.SendVerification(ctx); err != nil {
		logger.Warn().Err(err).Msg("verification mail failed")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = domain.DefaultDisplayName
	}
	profile := domain.UserProfile{
		UID:         id.UID,
		DisplayName: name,
		Email:       id.Email,
		Level:       domain.DefaultLevel,
		CreatedAt:   r.now().UnixMilli(),
	}
	if err := r.gw.Set(ctx, gateway.UserPath(id.UID), mapper.ProfileToRemote(profile)); err != nil {
		_ = r.SignOut(ctx)
		return "", wrap(op, err)
	}
	_ = r.SignOut(ctx)
	logger.Info().Msg("signed up")
	return id.UID, nil
}

// SignOut завершает сессию и живые потоки. Повторный вызов безопасен.
func (r *Chrono) SignOut(ctx context.Context) error {
	if err := r.gw.SignOut(ctx); err != nil {
		return wrap("sign out", err)
	}
	r.endSession()
	return nil
}

// CurrentUserID возвращает идентификатор текущего пользователя.
func (r *Chrono) CurrentUserID() (string, bool) { return r.gw.UserID() }

// CurrentUser возвращает снимок текущего пользователя.
func (r *Chrono) CurrentUser() *domain.Identity { return r.gw.CurrentUser() }

// ReloadUser перечитывает текущего пользователя у сервиса идентификации.
func (r *Chrono) ReloadUser(ctx context.Context) (*domain.Identity, error) {
	id, err := r.gw.ReloadUser(ctx)
	return id, wrap("reload user", err)
}

// GetProfile читает профиль текущего пользователя.
func (r *Chrono) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	const op = "get profile"
	uid, err := r.uid(op)
	if err != nil {
		return domain.UserProfile{}, err
	}
	doc, err := r.gw.Get(ctx, gateway.UserPath(uid))
	if err != nil {
		return domain.UserProfile{}, wrap(op, err)
	}
	return mapper.ProfileFromRemote(uid, doc.Data), nil
}

// UpdateProfile перезаписывает профиль текущего пользователя.
func (r *Chrono) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	const op = "update profile"
	uid, err := r.uid(op)
	if err != nil {
		return err
	}
	p.UID = uid
	if p.Level == "" {
		p.Level = domain.DefaultLevel
	}
	return wrap(op, r.gw.Set(ctx, gateway.UserPath(uid), mapper.ProfileToRemote(p)))
}

// UploadAttachment загружает вложение по pathHint или в user_uploads/<uid>/img_<ms>.jpg.
func (r *Chrono) UploadAttachment(ctx context.Context, body io.Reader, pathHint string) (string, error) {
	const op = "upload attachment"
	uid, err := r.uid(op)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(pathHint)
	if target == "" {
		target = fmt.Sprintf("user_uploads/%s/img_%d.jpg", uid, r.now().UnixMilli())
	}
	contentType := mime.TypeByExtension(path.Ext(target))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := r.gw.Upload(ctx, target, body, contentType)
	if err != nil {
		return "", wrap(op, err)
	}
	r.log.Debug().Str("uid", uid).Str("path", target).Msg("attachment uploaded")
	return url, nil
}

// scoped пересылает снимки коллекции до конца сессии. При выходе поток отдаёт empty
// и завершается.
func scoped[T any](ctx context.Context, src *stream.Feed[[]domain.Document], done <-chan struct{}, convert func([]domain.Document) T, empty T) *stream.Feed[T] {
	return stream.FromCallback(ctx, func(em *stream.Emitter[T]) (func(), error) {
		stop := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			for {
				select {
				case <-stop:
					return
				case <-done:
					em.Send(empty)
					em.Close()
					return
				case docs, ok := <-src.Updates():
					if !ok {
						if err := src.Err(); err != nil {
							em.Fail(err)
						} else {
							em.Close()
						}
						return
					}
					em.Send(convert(docs))
				}
			}
		}()
		return func() {
			close(stop)
			src.Close()
			<-finished
		}, nil
	})
}

// ObserveAgendas отдаёт список агенд при каждом изменении, упорядоченный по началу.
func (r *Chrono) ObserveAgendas(ctx context.Context) domain.Feed[[]domain.Agenda] {
	uid, ok := r.gw.UserID()
	if !ok {
		return stream.Just([]domain.Agenda{})
	}
	done := r.session()
	src := r.gw.Listen(ctx, gateway.UserCollection(uid, gateway.CollectionAgendas))
	return scoped(ctx, src, done, r.toAgendas, []domain.Agenda{})
}

func (r *Chrono) toAgendas(docs []domain.Document) []domain.Agenda {
	out := make([]domain.Agenda, 0, len(docs))
	for _, d := range docs {
		a := mapper.AgendaFromRemote(d.ID, d.Data)
		a.Date = domain.DayKey(a.StartAt, r.loc)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartAt != out[j].StartAt {
			return out[i].StartAt < out[j].StartAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AddAgenda проверяет и сохраняет новую агенду.
func (r *Chrono) AddAgenda(ctx context.Context, a domain.Agenda) (string, error) {
	const op = "add agenda"
	uid, err := r.uid(op)
	if err != nil {
		return "", err
	}
	now := r.now().UnixMilli()
	if err := domain.ValidateAgenda(op, a, now, true); err != nil {
		return "", err
	}
	a.Date = domain.DayKey(a.StartAt, r.loc)
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	a.CreatedAt, a.UpdatedAt = now, now
	id, err := r.gw.Add(ctx, gateway.UserCollection(uid, gateway.CollectionAgendas), mapper.AgendaToRemote(a))
	if err != nil {
		return "", wrap(op, err)
	}
	r.log.Debug().Str("uid", uid).Str("agenda_id", id).Msg("agenda added")
	return id, nil
}

// UpdateAgenda перезаписывает агенду, сохраняя createdAt и продвигая updatedAt.
func (r *Chrono) UpdateAgenda(ctx context.Context, a domain.Agenda) error {
	const op = "update agenda"
	uid, err := r.uid(op)
	if err != nil {
		return err
	}
	if a.ID == "" {
		return domain.Invalid(op, "agenda id is empty")
	}
	now := r.now().UnixMilli()
	if err := domain.ValidateAgenda(op, a, now, false); err != nil {
		return err
	}
	p := gateway.UserCollection(uid, gateway.CollectionAgendas) + "/" + a.ID
	doc, err := r.gw.Get(ctx, p)
	if err != nil {
		return wrap(op, err)
	}
	prev := mapper.AgendaFromRemote(doc.ID, doc.Data)
	a.Date = domain.DayKey(a.StartAt, r.loc)
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = advance(now, prev.UpdatedAt)
	return wrap(op, r.gw.Set(ctx, p, mapper.AgendaToRemote(a)))
}

// DeleteAgenda удаляет агенду.
func (r *Chrono) DeleteAgenda(ctx context.Context, id string) error {
	const op = "delete agenda"
	uid, err := r.uid(op)
	if err != nil {
		return err
	}
	if id == "" {
		return domain.Invalid(op, "agenda id is empty")
	}
	return wrap(op, r.gw.Delete(ctx, gateway.UserCollection(uid, gateway.CollectionAgendas)+"/"+id))
}

// ObserveNotes отдаёт список заметок при каждом изменении, свежие сверху.
func (r *Chrono) ObserveNotes(ctx context.Context) domain.Feed[[]domain.Note] {
	uid, ok := r.gw.UserID()
	if !ok {
		return stream.Just([]domain.Note{})
	}
	done := r.session()
	src := r.gw.Listen(ctx, gateway.UserCollection(uid, gateway.CollectionNotes))
	return scoped(ctx, src, done, toNotes, []domain.Note{})
}

func toNotes(docs []domain.Document) []domain.Note {
	out := make([]domain.Note, 0, len(docs))
	for _, d := range docs {
		n := mapper.NoteFromRemote(d.ID, d.Data)
		n.ContentPreview = domain.ContentPreview(n.Content)
		out = append(out, n)
	}
	domain.SortNotesByRecent(out)
	return out
}

func normalizeNote(n domain.Note) domain.Note {
	n.ContentPreview = domain.ContentPreview(n.Content)
	if n.Labels == nil {
		n.Labels = []string{}
	}
	if n.Attachments == nil {
		n.Attachments = []string{}
	}
	return n
}

// AddNote проверяет и сохраняет новую заметку.
func (r *Chrono) AddNote(ctx context.Context, n domain.Note) (string, error) {
	const op = "add note"
	uid, err := r.uid(op)
	if err != nil {
		return "", err
	}
	if err := domain.ValidateNote(op, n); err != nil {
		return "", err
	}
	now := r.now().UnixMilli()
	n = normalizeNote(n)
	n.CreatedAt, n.UpdatedAt = now, now
	id, err := r.gw.Add(ctx, gateway.UserCollection(uid, gateway.CollectionNotes), mapper.NoteToRemote(n))
	if err != nil {
		return "", wrap(op, err)
	}
	r.log.Debug().Str("uid", uid).Str("note_id", id).Msg("note added")
	return id, nil
}

// UpdateNote перезаписывает заметку, сохраняя createdAt и продвигая updatedAt.
func (r *Chrono) UpdateNote(ctx context.Context, n domain.Note) error {
	const op = "update note"
	uid, err := r.uid(op)
	if err != nil {
		return err
	}
	if n.ID == "" {
		return domain.Invalid(op, "note id is empty")
	}
	if err := domain.ValidateNote(op, n); err != nil {
		return err
	}
	p := gateway.UserCollection(uid, gateway.CollectionNotes) + "/" + n.ID
	doc, err := r.gw.Get(ctx, p)
	if err != nil {
		return wrap(op, err)
	}
	prev := mapper.NoteFromRemote(doc.ID, doc.Data)
	n = normalizeNote(n)
	n.CreatedAt = prev.CreatedAt
	n.UpdatedAt = advance(r.now().UnixMilli(), prev.UpdatedAt)
	return wrap(op, r.gw.Set(ctx, p, mapper.NoteToRemote(n)))
}

// DeleteNote удаляет заметку.
func (r *Chrono) DeleteNote(ctx context.Context, id string) error {
	const op = "delete note"
	uid, err := r.uid(op)
	if err != nil {
		return err
	}
	if id == "" {
		return domain.Invalid(op, "note id is empty")
	}
	return wrap(op, r.gw.Delete(ctx, gateway.UserCollection(uid, gateway.CollectionNotes)+"/"+id))
}

// advance возвращает now, но строго больше предыдущего updatedAt.
func advance(now, prev int64) int64 {
	if now <= prev {
		return prev + 1
	}
	return now
}
