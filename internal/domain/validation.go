package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// PreviewLength: число символов текста заметки в превью.
	PreviewLength = 100
	// MaxLabels: максимум меток у заметки.
	MaxLabels = 5
	// MaxLabelLength: максимальная длина метки в символах.
	MaxLabelLength = 15
	// MinPasswordLength: минимальная длина пароля.
	MinPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// ValidEmail проверяет синтаксис адреса.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ContentPreview возвращает первые 100 символов текста и многоточие, если текст длиннее.
func ContentPreview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	return string([]rune(content)[:PreviewLength]) + "..."
}

// ValidateAgenda проверяет агенду перед записью. nowMs используется только для новых агенд.
func ValidateAgenda(op string, a Agenda, nowMs int64, isNew bool) error {
	if strings.TrimSpace(a.Title) == "" {
		return Invalid(op, "Judul agenda harus diisi")
	}
	if a.EndAt <= a.StartAt {
		return Invalid(op, "Waktu selesai harus setelah waktu mulai")
	}
	if isNew && a.StartAt < nowMs {
		return Invalid(op, "Tidak bisa membuat agenda di masa lalu")
	}
	if a.ReminderMinutesBefore < 0 {
		return Invalid(op, "Pengingat tidak boleh negatif")
	}
	return nil
}

// ValidateNote проверяет ограничения меток и обязательные поля заметки.
func ValidateNote(op string, n Note) error {
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == "" {
		return Invalid(op, "Judul atau isi catatan harus diisi")
	}
	if len(n.Labels) > MaxLabels {
		return Invalid(op, "Maksimal 5 label")
	}
	for _, l := range n.Labels {
		if utf8.RuneCountInString(l) > MaxLabelLength {
			return Invalid(op, "Maksimal 15 karakter per label")
		}
	}
	return nil
}
