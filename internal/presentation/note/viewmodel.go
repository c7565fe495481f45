// Package note описывает состояние и действия экрана заметок.
package note

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
)

// State: снимок экрана заметок. Notes упорядочены по updatedAt по убыванию,
// VisibleNotes: результат текущего поиска.
type State struct {
	Notes            []domain.Note
	FavoriteNotes    []domain.Note
	VisibleNotes     []domain.Note
	Query            string
	IsLoading        bool
	ErrorMessage     string
	ShowAddDialog    bool
	IsEditMode       bool
	ShowDetailDialog bool
	SelectedNote     *domain.Note
	NavigateToEditor bool
	NoteToEdit       *domain.Note
	IsUploading      bool
	UploadedURL      string
}

// ViewModel управляет экраном заметок.
type ViewModel struct {
	repo  domain.ChronoRepository
	now   func() time.Time
	store *state.Store[State]
	log   zerolog.Logger
}

// New создаёт модель и подписывается на заметки пользователя.
func New(repo domain.ChronoRepository, logger zerolog.Logger) *ViewModel {
	vm := &ViewModel{
		repo:  repo,
		now:   time.Now,
		store: state.New(State{IsLoading: true}),
		log:   logger.With().Str("component", "note_vm").Logger(),
	}
	state.Collect(vm.store, repo.ObserveNotes, func(list []domain.Note) {
		vm.store.Update(func(s State) State {
			s.Notes = append([]domain.Note(nil), list...)
			domain.SortNotesByRecent(s.Notes)
			s.IsLoading = false
			return derive(s)
		})
	}, func(err error) {
		if err == nil {
			return
		}
		vm.log.Warn().Err(err).Msg("note stream failed")
		vm.store.Update(func(s State) State {
			s.IsLoading = false
			s.ErrorMessage = presentation.Message(err)
			return s
		})
	})
	return vm
}

func derive(s State) State {
	favorites := make([]domain.Note, 0)
	visible := make([]domain.Note, 0, len(s.Notes))
	for _, n := range s.Notes {
		if n.IsFavorite {
			favorites = append(favorites, n)
		}
		if n.Matches(s.Query) {
			visible = append(visible, n)
		}
	}
	s.FavoriteNotes = favorites
	s.VisibleNotes = visible
	return s
}

// State возвращает текущий снимок.
func (vm *ViewModel) State() State { return vm.store.Snapshot() }

// Close отменяет подписки и незавершённые действия.
func (vm *ViewModel) Close() { vm.store.Close() }

func (vm *ViewModel) update(fn func(*State)) {
	vm.store.Update(func(s State) State {
		fn(&s)
		return s
	})
}

func (vm *ViewModel) run(op string, fn func(ctx context.Context) error) {
	vm.store.Launch(func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			vm.log.Warn().Err(err).Str("op", op).Msg("note action failed")
			vm.update(func(s *State) { s.ErrorMessage = presentation.Message(err) })
		}
	})
}

// AddNote сохраняет новую заметку и закрывает диалог.
func (vm *ViewModel) AddNote(n domain.Note) {
	vm.run("add", func(ctx context.Context) error {
		if _, err := vm.repo.AddNote(ctx, n); err != nil {
			return err
		}
		vm.update(func(s *State) {
			s.ShowAddDialog, s.IsEditMode, s.ErrorMessage = false, false, ""
		})
		return nil
	})
}

// UpdateNote сохраняет правку заметки.
func (vm *ViewModel) UpdateNote(n domain.Note) {
	vm.run("update", func(ctx context.Context) error {
		if err := vm.repo.UpdateNote(ctx, n); err != nil {
			return err
		}
		vm.update(func(s *State) {
			s.ShowAddDialog, s.IsEditMode, s.ErrorMessage = false, false, ""
		})
		return nil
	})
}

// DeleteNote удаляет заметку.
func (vm *ViewModel) DeleteNote(id string) {
	vm.run("delete", func(ctx context.Context) error { return vm.repo.DeleteNote(ctx, id) })
}

// ToggleFavorite переключает отметку избранного.
func (vm *ViewModel) ToggleFavorite(id string) {
	vm.run("favorite", func(ctx context.Context) error {
		for _, n := range vm.store.Snapshot().Notes {
			if n.ID == id {
				n.IsFavorite = !n.IsFavorite
				n.UpdatedAt = vm.now().UnixMilli()
				return vm.repo.UpdateNote(ctx, n)
			}
		}
		return nil
	})
}

// UploadAttachment загружает вложение и кладёт адрес в UploadedURL для редактора.
func (vm *ViewModel) UploadAttachment(body io.Reader) {
	vm.update(func(s *State) { s.IsUploading = true })
	vm.store.Launch(func(ctx context.Context) {
		url, err := vm.repo.UploadAttachment(ctx, body, "")
		vm.update(func(s *State) {
			s.IsUploading = false
			if err != nil {
				s.ErrorMessage = presentation.Message(err)
				return
			}
			s.UploadedURL = url
		})
		if err != nil {
			vm.log.Warn().Err(err).Msg("attachment upload failed")
		}
	})
}

// TakeUploadedURL возвращает загруженный адрес и очищает слот.
func (vm *ViewModel) TakeUploadedURL() string {
	var url string
	vm.update(func(s *State) {
		url = s.UploadedURL
		s.UploadedURL = ""
	})
	return url
}

// Search фильтрует заметки по заголовку, тексту и меткам.
func (vm *ViewModel) Search(query string) {
	vm.store.Update(func(s State) State {
		s.Query = query
		return derive(s)
	})
}

func (vm *ViewModel) ShowAddDialog() {
	vm.update(func(s *State) { s.ShowAddDialog, s.IsEditMode, s.SelectedNote = true, false, nil })
}

func (vm *ViewModel) ShowEditDialog(n domain.Note) {
	vm.update(func(s *State) { s.ShowAddDialog, s.IsEditMode, s.SelectedNote = true, true, &n })
}

func (vm *ViewModel) HideAddDialog() {
	vm.update(func(s *State) { s.ShowAddDialog, s.IsEditMode, s.SelectedNote = false, false, nil })
}

func (vm *ViewModel) ShowDetailDialog(n domain.Note) {
	vm.update(func(s *State) { s.ShowDetailDialog, s.SelectedNote = true, &n })
}

func (vm *ViewModel) HideDetailDialog() {
	vm.update(func(s *State) { s.ShowDetailDialog, s.SelectedNote = false, nil })
}

// NavigateToEditor просит экран открыть редактор. nil открывает пустую заметку.
func (vm *ViewModel) NavigateToEditor(n *domain.Note) {
	vm.update(func(s *State) {
		s.NavigateToEditor = true
		s.NoteToEdit = n
	})
}

// ClearNavigation сбрасывает запрос навигации после перехода.
func (vm *ViewModel) ClearNavigation() {
	vm.update(func(s *State) {
		s.NavigateToEditor = false
		s.NoteToEdit = nil
	})
}

func (vm *ViewModel) ClearError() { vm.update(func(s *State) { s.ErrorMessage = "" }) }
