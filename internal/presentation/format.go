// Package presentation содержит общие для экранов форматирование дат и тексты ошибок.
package presentation

import (
	"fmt"
	"time"

	"chronoplan/internal/domain"
)

var (
	dayNames   = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	monthNames = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
)

// LongDate форматирует момент как "Senin, 10 Maret 2025" в поясе loc.
func LongDate(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(ms).In(loc)
	return fmt.Sprintf("%s, %02d %s %d", dayNames[t.Weekday()], t.Day(), monthNames[t.Month()-1], t.Year())
}

// Тексты ошибок для пользователя.
const (
	MsgNotAuthenticated  = "Belum login"
	MsgWrongCredentials  = "Email atau password salah"
	MsgEmailUnverified   = "Email belum diverifikasi. Silakan cek inbox email Anda."
	MsgAlreadyRegistered = "Email sudah terdaftar"
	MsgInvalidEmail      = "Format email tidak valid"
	MsgWeakPassword      = "Password minimal 6 karakter"
	MsgNotFound          = "Profil tidak ditemukan"
	MsgUpload            = "Upload gagal"
	MsgNetwork           = "Tidak ada koneksi internet"
	MsgUnknown           = "Terjadi kesalahan"
)

// Message переводит ошибку репозитория в текст для экрана. Для ошибок валидации и
// неизвестных ошибок возвращается исходное сообщение.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch domain.KindOf(err) {
	case domain.KindNotAuthenticated:
		return MsgNotAuthenticated
	case domain.KindWrongCredentials:
		return MsgWrongCredentials
	case domain.KindEmailUnverified:
		return MsgEmailUnverified
	case domain.KindAlreadyRegistered:
		return MsgAlreadyRegistered
	case domain.KindInvalidEmail:
		return MsgInvalidEmail
	case domain.KindWeakPassword:
		return MsgWeakPassword
	case domain.KindNotFound:
		return MsgNotFound
	case domain.KindUpload:
		return MsgUpload
	case domain.KindNetwork:
		return MsgNetwork
	}
	if msg := domain.MessageOf(err); msg != "" {
		return msg
	}
	return MsgUnknown
}
