package presentation

import (
	"errors"
	"testing"
	"time"

	"chronoplan/internal/domain"
)

func TestLongDate(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	ms := time.Date(2025, 3, 10, 23, 30, 0, 0, wib).UnixMilli()
	if got := LongDate(ms, wib); got != "Senin, 10 Maret 2025" {
		t.Fatalf("неверная дата: %q", got)
	}
	if got := LongDate(ms, time.UTC); got != "Senin, 10 Maret 2025" {
		t.Fatalf("неверная дата в UTC: %q", got)
	}
	ms = time.Date(2025, 1, 5, 1, 0, 0, 0, wib).UnixMilli()
	if got := LongDate(ms, wib); got != "Minggu, 05 Januari 2025" {
		t.Fatalf("неверная дата: %q", got)
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.E(domain.KindNotAuthenticated, "op", nil), "Belum login"},
		{domain.E(domain.KindWrongCredentials, "op", nil), "Email atau password salah"},
		{domain.E(domain.KindAlreadyRegistered, "op", nil), "Email sudah terdaftar"},
		{domain.E(domain.KindNotFound, "op", nil), "Profil tidak ditemukan"},
		{domain.E(domain.KindUpload, "op", errors.New("bucket")), "Upload gagal"},
		{domain.E(domain.KindNetwork, "op", errors.New("dial")), "Tidak ada koneksi internet"},
		{domain.Invalid("op", "Judul agenda harus diisi"), "Judul agenda harus diisi"},
		{errors.New("quota exceeded"), "quota exceeded"},
	}
	for _, c := range cases {
		if got := Message(c.err); got != c.want {
			t.Fatalf("Message(%v) = %q, ожидали %q", c.err, got, c.want)
		}
	}
}
