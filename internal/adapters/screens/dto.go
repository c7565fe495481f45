package screens

import (
	"chronoplan/internal/domain"
	"chronoplan/internal/mapper"
	"chronoplan/internal/presentation/agenda"
	"chronoplan/internal/presentation/akun"
	"chronoplan/internal/presentation/auth"
	"chronoplan/internal/presentation/home"
	"chronoplan/internal/presentation/note"
)

// Снимки экранов отдаются в том же виде, что и документы хранилища, с добавлением id.

func agendaJSON(a domain.Agenda) map[string]any {
	m := mapper.AgendaToRemote(a)
	m["id"] = a.ID
	return m
}

func agendasJSON(list []domain.Agenda) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, agendaJSON(a))
	}
	return out
}

func noteJSON(n domain.Note) map[string]any {
	m := mapper.NoteToRemote(n)
	m["id"] = n.ID
	return m
}

func notesJSON(list []domain.Note) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, n := range list {
		out = append(out, noteJSON(n))
	}
	return out
}

func homeJSON(s home.State) map[string]any {
	pie := make([]map[string]any, 0, len(s.PieChartData))
	for _, p := range s.PieChartData {
		pie = append(pie, map[string]any{"percentage": p.Percentage, "color": p.Color, "label": p.Label})
	}
	schedule := make([]map[string]any, 0, len(s.JadwalHariIni))
	for _, e := range s.JadwalHariIni {
		schedule = append(schedule, map[string]any{"id": e.ID, "icon": e.Icon, "title": e.Title})
	}
	return map[string]any{
		"date":           s.Date,
		"infoTugas":      s.InfoTugas,
		"jadwalHariIni":  schedule,
		"historyNotes":   s.HistoryNotes,
		"tugasTerlambat": s.TugasTerlambat,
		"pieChartData":   pie,
		"isLoading":      s.IsLoading,
		"errorMessage":   s.ErrorMessage,
	}
}

func agendaStateJSON(s agenda.State) map[string]any {
	out := map[string]any{
		"agendas":               agendasJSON(s.Agendas),
		"todayAgendas":          agendasJSON(s.TodayAgendas),
		"selectedDate":          s.SelectedDate,
		"selectedDateFormatted": s.SelectedDateFormatted,
		"isLoading":             s.IsLoading,
		"errorMessage":          s.ErrorMessage,
		"showAddDialog":         s.ShowAddDialog,
		"showHistoryDialog":     s.ShowHistoryDialog,
		"showDatePicker":        s.ShowDatePicker,
		"showDetailDialog":      s.ShowDetailDialog,
	}
	if s.SelectedAgenda != nil {
		out["selectedAgenda"] = agendaJSON(*s.SelectedAgenda)
	}
	return out
}

func noteStateJSON(s note.State) map[string]any {
	out := map[string]any{
		"notes":            notesJSON(s.VisibleNotes),
		"favoriteNotes":    notesJSON(s.FavoriteNotes),
		"query":            s.Query,
		"isLoading":        s.IsLoading,
		"errorMessage":     s.ErrorMessage,
		"showAddDialog":    s.ShowAddDialog,
		"isEditMode":       s.IsEditMode,
		"showDetailDialog": s.ShowDetailDialog,
		"isUploading":      s.IsUploading,
		"uploadedUrl":      s.UploadedURL,
	}
	if s.SelectedNote != nil {
		out["selectedNote"] = noteJSON(*s.SelectedNote)
	}
	return out
}

func akunJSON(s akun.State) map[string]any {
	achievements := make([]map[string]any, 0, len(s.Achievements))
	for _, a := range s.Achievements {
		achievements = append(achievements, map[string]any{
			"id":            a.ID,
			"name":          a.Name,
			"description":   a.Description,
			"icon":          a.Icon,
			"requiredCount": a.RequiredCount,
			"currentCount":  a.CurrentCount,
			"isUnlocked":    a.IsUnlocked,
		})
	}
	out := map[string]any{
		"username":          s.Username,
		"email":             s.Email,
		"level":             s.Level,
		"isCalendarSynced":  s.IsCalendarSynced,
		"isUploadingAvatar": s.IsUploadingAvatar,
		"achievements":      achievements,
		"stats": map[string]any{
			"totalAgendas":     s.Stats.TotalAgendas,
			"completedAgendas": s.Stats.CompletedAgendas,
			"totalNotes":       s.Stats.TotalNotes,
			"currentStreak":    s.Stats.CurrentStreak,
			"longestStreak":    s.Stats.LongestStreak,
			"level":            s.Stats.Level,
			"experience":       s.Stats.Experience,
		},
		"isLoading":    s.IsLoading,
		"isLoggedOut":  s.IsLoggedOut,
		"errorMessage": s.ErrorMessage,
	}
	if s.AvatarURL != nil {
		out["avatarUrl"] = *s.AvatarURL
	}
	return out
}

func signInJSON(s auth.SignInState) map[string]any {
	return map[string]any{
		"email":        s.Email,
		"isLoading":    s.IsLoading,
		"isSignedIn":   s.IsSignedIn,
		"errorMessage": s.ErrorMessage,
	}
}

func signUpJSON(s auth.SignUpState) map[string]any {
	return map[string]any{
		"displayName":            s.DisplayName,
		"email":                  s.Email,
		"isLoading":              s.IsLoading,
		"showVerificationDialog": s.ShowVerificationDialog,
		"navigateToSignIn":       s.NavigateToSignIn,
		"infoMessage":            s.InfoMessage,
		"errorMessage":           s.ErrorMessage,
	}
}
