package intake

import (
	"fmt"
	"strings"

	"dental-intake-bot/internal/catalog"
)

const (
	msgAskOperatorName    = "Masukkan Nama Dokter Pemeriksa"
	msgWelcome            = "Hai dokter %s, semangat kerjanya hari ini🤗!\nKetik /newpatient untuk memulai pendataan."
	msgContinueSession    = "Anda memiliki input data yang belum selesai. Ingin melanjutkan?"
	msgAskAddTooth        = "Apakah ada gigi lain yang mau ditambahkan?"
	msgSummaryHeader      = "📋 Ringkasan Data Pasien\n\nSilakan periksa data berikut:\n"
	msgSummaryQuestion    = "\nApakah data sudah benar?"
	msgSuccess            = "✅ Data berhasil disimpan!\n\nKetik /start untuk memulai ulang pencatatan."
	msgCancelled          = "❌ Input data dibatalkan. Data tidak disimpan."
	msgSaveFailed         = "Data gagal disimpan. Silakan tekan Yes untuk mencoba lagi."
	msgNoActiveSession    = "Tidak ada sesi aktif. Ketik /start untuk memulai."
	msgAlreadyHasSession  = "Anda sudah memiliki sesi aktif. Selesaikan atau gunakan /exit untuk membatalkan."
	msgSelectFieldToEdit  = "Pilih field yang ingin diubah:"
	msgSelectToothField   = "Pilih data gigi #%d yang ingin diubah:"
	msgGenericError       = "Terjadi kesalahan. Silakan coba lagi."
	labelContinue         = "Lanjutkan"
	labelStartNew         = "Mulai Baru"
	labelYes              = "Yes"
	labelNo               = "No"
	labelChange           = "Change"
	labelAddToothYes      = "Ya"
	labelAddToothNo       = "Tidak"
	labelBack             = "⬅️ Kembali"
	labelToothPrefix      = "🦷 Gigi #%d"
	summaryEmptyValue     = "-"
	fieldPromptPrefix     = "Masukkan "
	editFieldPromptSuffix = " yang baru"
	choicePromptPrefix    = "Pilih "
)

func welcome(name string) string { return fmt.Sprintf(msgWelcome, name) }

func fieldPrompt(label string) string {
	return fieldPromptPrefix + strings.ToLower(label)
}

func editPrompt(label string) string {
	return fieldPromptPrefix + strings.ToLower(label) + editFieldPromptSuffix
}

func choicePrompt(label string) string { return choicePromptPrefix + label + ":" }

func toothLabel(n int, tooth Record) string {
	s := fmt.Sprintf(labelToothPrefix, n)
	if v := tooth[catalog.FieldToothNumber]; v != "" {
		s += " (" + v + ")"
	}
	return s
}
