package akun

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/gateway"
	"chronoplan/internal/domain"
	"chronoplan/internal/mapper"
	"chronoplan/internal/presentation/vmtest"
	"chronoplan/internal/usecase/achievement"
)

func newVM(t *testing.T, st *vmtest.Stack) *ViewModel {
	t.Helper()
	vm := newViewModel(st.UseCase, achievement.NewService(vmtest.WIB), vmtest.WIB, st.Clock.Now, zerolog.Nop())
	t.Cleanup(vm.Close)
	return vm
}

func TestProfileAndAchievements(t *testing.T) {
	st := vmtest.NewStack(t)
	uid := st.SignIn(t, "alice@example.org")
	ctx := context.Background()
	now := st.Clock.Now().UnixMilli()
	done := domain.Agenda{Title: "Rapat", StartAt: now, EndAt: now + 1, Status: domain.StatusDone, CreatedAt: now, UpdatedAt: now}
	_ = st.Docs.Set(ctx, gateway.UserCollection(uid, gateway.CollectionAgendas)+"/a1", mapper.AgendaToRemote(done))

	vm := newVM(t, st)
	vmtest.Eventually(t, func() bool { return vm.State().Email == "alice@example.org" }, "профиль")
	s := vm.State()
	if s.Username != "Alice" || s.Level != "Newbie" || s.IsLoading {
		t.Fatalf("профиль: %+v", s)
	}

	vmtest.Eventually(t, func() bool { return vm.State().Stats.CompletedAgendas == 1 }, "статистика")
	s = vm.State()
	if s.Stats.CurrentStreak != 1 || s.Stats.Experience != 10 || s.Stats.Level != 1 {
		t.Fatalf("статистика: %+v", s.Stats)
	}
	if len(s.Achievements) != 6 || s.Achievements[0].ID != "first_agenda" || !s.Achievements[0].IsUnlocked {
		t.Fatalf("первое достижение должно открыться: %+v", s.Achievements)
	}
	for _, a := range s.Achievements[1:] {
		if a.IsUnlocked {
			t.Fatalf("%s не должно быть открыто", a.ID)
		}
	}
}

func TestUploadAvatarAndRename(t *testing.T) {
	st := vmtest.NewStack(t)
	uid := st.SignIn(t, "alice@example.org")
	vm := newVM(t, st)
	vmtest.Eventually(t, func() bool { return vm.State().Email != "" }, "профиль")

	vm.UploadAvatar(strings.NewReader("png"))
	want := "https://chronoplan.test/files/avatars/" + "1741572000000" + ".jpg"
	vmtest.Eventually(t, func() bool {
		s := vm.State()
		return !s.IsUploadingAvatar && s.AvatarURL != nil
	}, "аватар")
	if got := *vm.State().AvatarURL; got != want {
		t.Fatalf("адрес аватара: %s", got)
	}
	doc, _ := st.Docs.Get(context.Background(), gateway.UserPath(uid))
	if doc.Data["avatarUrl"] != want {
		t.Fatalf("профиль не обновлён: %v", doc.Data)
	}

	vm.ShowEditNameDialog()
	vm.UpdateUsername("  ")
	if vm.State().ErrorMessage != MsgNameRequired {
		t.Fatalf("пустое имя должно отклоняться")
	}
	vm.UpdateUsername("Alice W")
	vmtest.Eventually(t, func() bool { return vm.State().Username == "Alice W" }, "новое имя")
	if vm.State().ShowEditNameDialog || vm.State().ErrorMessage != "" {
		t.Fatalf("диалог должен закрыться: %+v", vm.State())
	}
	doc, _ = st.Docs.Get(context.Background(), gateway.UserPath(uid))
	if doc.Data["displayName"] != "Alice W" || doc.Data["avatarUrl"] != want {
		t.Fatalf("профиль: %v", doc.Data)
	}
}

func TestUploadAvatarFailure(t *testing.T) {
	st := vmtest.NewStack(t)
	st.SignIn(t, "alice@example.org")
	vm := newVM(t, st)
	st.Objects.FailPuts(context.DeadlineExceeded)

	vm.UploadAvatar(strings.NewReader("png"))
	vmtest.Eventually(t, func() bool { return vm.State().ErrorMessage == "Upload gagal" }, "ошибка загрузки")
	if vm.State().IsUploadingAvatar || vm.State().AvatarURL != nil {
		t.Fatalf("состояние после ошибки: %+v", vm.State())
	}
}

func TestLogoutAndCalendarSync(t *testing.T) {
	st := vmtest.NewStack(t)
	st.SignIn(t, "alice@example.org")
	vm := newVM(t, st)

	vm.ToggleCalendarSync(true)
	if !vm.State().IsCalendarSynced {
		t.Fatalf("флаг синхронизации")
	}
	vm.Logout()
	vmtest.Eventually(t, func() bool { return vm.State().IsLoggedOut }, "выход")
	if _, ok := st.UseCase.CurrentUserID(); ok {
		t.Fatalf("сессия должна быть закрыта")
	}
	vmtest.Eventually(t, func() bool { return vm.State().Stats.TotalAgendas == 0 }, "статистика после выхода")
}

func TestGuestDefaults(t *testing.T) {
	st := vmtest.NewStack(t)
	vm := newVM(t, st)
	vmtest.Eventually(t, func() bool { return vm.State().ErrorMessage != "" }, "ошибка без сессии")
	s := vm.State()
	if s.Username != "Guest" || s.Level != "Newbie" || s.ErrorMessage != "Belum login" {
		t.Fatalf("гость: %+v", s)
	}
}
