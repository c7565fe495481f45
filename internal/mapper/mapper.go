// Package mapper переводит документы хранилища в доменные записи и обратно.
// Функции тотальны: отсутствующие или битые поля заменяются значениями по умолчанию.
package mapper

import (
	"encoding/json"
	"math"
	"strconv"

	"chronoplan/internal/domain"
)

// Поля документов.
const (
	FieldUID                   = "uid"
	FieldDisplayName           = "displayName"
	FieldEmail                 = "email"
	FieldAvatarURL             = "avatarUrl"
	FieldBirthDate             = "birthDate"
	FieldGender                = "gender"
	FieldLevel                 = "level"
	FieldTitle                 = "title"
	FieldDescription           = "description"
	FieldDate                  = "date"
	FieldStartAt               = "startAt"
	FieldEndAt                 = "endAt"
	FieldStatus                = "status"
	FieldIsFavorite            = "isFavorite"
	FieldReminderMinutesBefore = "reminderMinutesBefore"
	FieldContent               = "content"
	FieldContentPreview        = "contentPreview"
	FieldLabels                = "labels"
	FieldAttachments           = "attachments"
	FieldCreatedAt             = "createdAt"
	FieldUpdatedAt             = "updatedAt"
)

// AgendaToRemote строит документ агенды.
func AgendaToRemote(a domain.Agenda) map[string]any {
	return map[string]any{
		FieldTitle:                 a.Title,
		FieldDescription:           a.Description,
		FieldDate:                  a.Date,
		FieldStartAt:               a.StartAt,
		FieldEndAt:                 a.EndAt,
		FieldStatus:                string(a.Status),
		FieldIsFavorite:            a.IsFavorite,
		FieldReminderMinutesBefore: int64(a.ReminderMinutesBefore),
		FieldCreatedAt:             a.CreatedAt,
		FieldUpdatedAt:             a.UpdatedAt,
	}
}

// AgendaFromRemote читает агенду из документа.
func AgendaFromRemote(id string, m map[string]any) domain.Agenda {
	status := domain.AgendaStatus(str(m, FieldStatus))
	if status == "" {
		status = domain.StatusPending
	}
	return domain.Agenda{
		ID:                    id,
		Title:                 str(m, FieldTitle),
		Description:           str(m, FieldDescription),
		Date:                  str(m, FieldDate),
		StartAt:               num(m, FieldStartAt),
		EndAt:                 num(m, FieldEndAt),
		Status:                status,
		IsFavorite:            boolean(m, FieldIsFavorite),
		ReminderMinutesBefore: int(num(m, FieldReminderMinutesBefore)),
		CreatedAt:             num(m, FieldCreatedAt),
		UpdatedAt:             num(m, FieldUpdatedAt),
	}
}

// NoteToRemote строит документ заметки.
func NoteToRemote(n domain.Note) map[string]any {
	return map[string]any{
		FieldTitle:          n.Title,
		FieldContent:        n.Content,
		FieldContentPreview: n.ContentPreview,
		FieldLabels:         anyList(n.Labels),
		FieldAttachments:    anyList(n.Attachments),
		FieldIsFavorite:     n.IsFavorite,
		FieldCreatedAt:      n.CreatedAt,
		FieldUpdatedAt:      n.UpdatedAt,
	}
}

// NoteFromRemote читает заметку из документа.
func NoteFromRemote(id string, m map[string]any) domain.Note {
	return domain.Note{
		ID:             id,
		Title:          str(m, FieldTitle),
		Content:        str(m, FieldContent),
		ContentPreview: str(m, FieldContentPreview),
		Labels:         strList(m, FieldLabels),
		Attachments:    strList(m, FieldAttachments),
		IsFavorite:     boolean(m, FieldIsFavorite),
		CreatedAt:      num(m, FieldCreatedAt),
		UpdatedAt:      num(m, FieldUpdatedAt),
	}
}

// ProfileToRemote строит документ профиля. Пустые необязательные поля не пишутся.
func ProfileToRemote(p domain.UserProfile) map[string]any {
	m := map[string]any{
		FieldUID:         p.UID,
		FieldDisplayName: p.DisplayName,
		FieldEmail:       p.Email,
		FieldLevel:       p.Level,
		FieldCreatedAt:   p.CreatedAt,
	}
	if p.AvatarURL != nil {
		m[FieldAvatarURL] = *p.AvatarURL
	}
	if p.BirthDate != nil {
		m[FieldBirthDate] = *p.BirthDate
	}
	if p.Gender != nil {
		m[FieldGender] = *p.Gender
	}
	return m
}

// ProfileFromRemote читает профиль из документа.
func ProfileFromRemote(id string, m map[string]any) domain.UserProfile {
	uid := str(m, FieldUID)
	if uid == "" {
		uid = id
	}
	level := str(m, FieldLevel)
	if level == "" {
		level = domain.DefaultLevel
	}
	return domain.UserProfile{
		UID:         uid,
		DisplayName: str(m, FieldDisplayName),
		Email:       str(m, FieldEmail),
		AvatarURL:   optStr(m, FieldAvatarURL),
		BirthDate:   optStr(m, FieldBirthDate),
		Gender:      optStr(m, FieldGender),
		Level:       level,
		CreatedAt:   num(m, FieldCreatedAt),
	}
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func optStr(m map[string]any, key string) *string {
	v, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func num(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func strList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
